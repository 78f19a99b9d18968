package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadPlainTextCorpus(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy_a.txt", "Clause one covers hospitalization.\n\nClause two lists exclusions.")
	writeDoc(t, dir, "policy_b.txt", "Clause three covers maternity care.")

	loader := NewLoader(dir, NewChunker(100, 0))
	corpus, err := loader.Load()

	require.NoError(t, err)
	require.Len(t, corpus.Chunks, 3)
	assert.NotEmpty(t, corpus.Fingerprint)
	assert.Empty(t, corpus.Skipped)

	// deterministic ordering: files by name, positions ascending
	assert.Equal(t, "policy_a.txt", corpus.Chunks[0].SourceDocument)
	assert.Equal(t, "policy_b.txt", corpus.Chunks[2].SourceDocument)
	for i, chunk := range corpus.Chunks {
		assert.Equal(t, i, chunk.Position)
		assert.NotEmpty(t, chunk.ID)
	}
}

func TestLoadSkipsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.txt", "Clause one covers hospitalization in network hospitals.")
	writeDoc(t, dir, "broken.pdf", "this is not a real pdf")

	loader := NewLoader(dir, NewChunker(100, 0))
	corpus, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"broken.pdf"}, corpus.Skipped)
	require.Len(t, corpus.Chunks, 1)
	assert.Equal(t, "good.txt", corpus.Chunks[0].SourceDocument)
}

func TestLoadIgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy.txt", "Clause one covers hospitalization.")
	writeDoc(t, dir, "notes.csv", "a,b,c")

	loader := NewLoader(dir, NewChunker(100, 0))
	corpus, err := loader.Load()

	require.NoError(t, err)
	require.Len(t, corpus.Chunks, 1)
	assert.Empty(t, corpus.Skipped)
}

func TestLoadEmptyDirectoryFails(t *testing.T) {
	loader := NewLoader(t.TempDir(), NewChunker(100, 0))

	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoadFingerprintTracksContentChanges(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy.txt", "Clause one covers hospitalization.")

	loader := NewLoader(dir, NewChunker(100, 0))
	first, err := loader.Load()
	require.NoError(t, err)

	second, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	writeDoc(t, dir, "policy.txt", "Clause one covers hospitalization and daycare procedures now.")
	third, err := loader.Load()
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func TestExtractHTML(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy.html", `<html><head><script>ignored()</script></head>
<body><nav>menu</nav><p>Clause one covers hospitalization.</p><li>Clause two lists exclusions.</li></body></html>`)

	loader := NewLoader(dir, NewChunker(100, 0))
	corpus, err := loader.Load()

	require.NoError(t, err)
	require.NotEmpty(t, corpus.Chunks)
	joined := ""
	for _, c := range corpus.Chunks {
		joined += c.Text + "\n"
	}
	assert.Contains(t, joined, "Clause one covers hospitalization.")
	assert.Contains(t, joined, "Clause two lists exclusions.")
	assert.NotContains(t, joined, "ignored()")
	assert.NotContains(t, joined, "menu")
}
