package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortParagraphsStayWhole(t *testing.T) {
	c := NewChunker(100, 0)

	text := "First clause about hospitalization cover.\n\nSecond clause about exclusions."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "First clause about hospitalization cover.", chunks[0])
	assert.Equal(t, "Second clause about exclusions.", chunks[1])
}

func TestChunkSplitsLongParagraphOnSentences(t *testing.T) {
	c := NewChunker(20, 0)

	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "Sentence number %d covers a different benefit of the insurance policy. ", i)
	}

	chunks := c.Chunk(b.String())

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		words := len(strings.Fields(chunk))
		assert.LessOrEqual(t, words, 20, "chunk: %s", chunk)
		// sentence boundaries survive splitting
		assert.True(t, strings.HasSuffix(chunk, "."), "chunk: %s", chunk)
	}
}

func TestChunkMergesShortFragments(t *testing.T) {
	c := NewChunker(100, 10)

	text := "Tiny.\n\nThis second paragraph has comfortably more than ten words in it for the test."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Tiny.")
	assert.Contains(t, chunks[0], "second paragraph")
}

func TestChunkTrailingFragmentFoldsBackward(t *testing.T) {
	c := NewChunker(100, 10)

	text := "This opening paragraph has comfortably more than ten words in it for the test.\n\nTrailing bit."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Trailing bit.")
}

func TestChunkEmptyInput(t *testing.T) {
	c := NewChunker(100, 10)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("\n\n  \n\n"))
}

func TestChunkOversizedSentenceKeptWhole(t *testing.T) {
	c := NewChunker(5, 0)

	sentence := "This single sentence runs well past the five word bound without a period until the very end."
	chunks := c.Chunk(sentence)

	require.Len(t, chunks, 1)
	assert.Equal(t, sentence, chunks[0])
}
