package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/internal/engine"
	"github.com/claims-agent/backend/internal/index"
	"github.com/claims-agent/backend/internal/ingestion"
	"github.com/claims-agent/backend/internal/llm"
	"github.com/claims-agent/backend/internal/storage/sqlite"
)

// keywordEmbedder maps text onto a fixed 2-d space so retrieval order is
// fully predictable in tests.
type keywordEmbedder struct {
	failOn string
}

func (e *keywordEmbedder) vector(text string) ([]float32, error) {
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, claims.ErrServiceUnavailable
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "knee"):
		return []float32{1, 0}, nil
	case strings.Contains(lower, "diabetes"):
		return []float32{0, 1}, nil
	default:
		return []float32{0.5, 0.5}, nil
	}
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text)
}

func (e *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.vector(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// promptRouter answers based on the top-ranked clause in the prompt.
type promptRouter struct{}

func topClause(prompt string) string {
	start := strings.Index(prompt, "Clause 1")
	if start < 0 {
		return ""
	}
	top := prompt[start:]
	if i := strings.Index(top, "Clause 2"); i >= 0 {
		top = top[:i]
	}
	return top
}

func (promptRouter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if strings.Contains(topClause(req.UserPrompt), "Knee surgery") {
		return &llm.CompletionResponse{Content: `{
			"decision": "approved",
			"amount": 150000,
			"justification": "Covered per Clause 1.",
			"user_friendly_explanation": "Your knee surgery is covered.",
			"clause_references": ["Clause 1"]
		}`}, nil
	}
	if strings.Contains(topClause(req.UserPrompt), "Diabetes") {
		return &llm.CompletionResponse{Content: `{
			"decision": "rejected",
			"justification": "Pre-existing diabetes is excluded per Clause 1.",
			"clause_references": ["Clause 1"]
		}`}, nil
	}
	return &llm.CompletionResponse{Content: `{"decision": "review", "justification": "Clauses are inconclusive."}`}, nil
}

func newTestPipeline(t *testing.T, embedder Embedder) *Pipeline {
	t.Helper()

	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "policy_knee.txt"),
		[]byte("Knee surgery is covered after a two month waiting period."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "policy_pre.txt"),
		[]byte("Diabetes and other pre-existing conditions are excluded for four years."), 0o644))

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	loader := ingestion.NewLoader(docsDir, ingestion.NewChunker(200, 0))
	eval := engine.New(promptRouter{}, 3)

	return New(loader, embedder, eval, db, nil, Options{
		TopK:         2,
		StoreFactory: func() index.Store { return index.NewMemory() },
	})
}

func TestProcessClaimBeforeBuild(t *testing.T) {
	p := newTestPipeline(t, &keywordEmbedder{})

	_, err := p.ProcessClaim(context.Background(), "knee surgery")
	assert.ErrorIs(t, err, claims.ErrNotReady)
	assert.False(t, p.Ready())
}

func TestProcessClaimApprovedWithCitations(t *testing.T) {
	p := newTestPipeline(t, &keywordEmbedder{})
	require.NoError(t, p.Build(context.Background()))
	require.True(t, p.Ready())

	result, err := p.ProcessClaim(context.Background(), "46M, knee surgery, 4-month policy")
	require.NoError(t, err)

	assert.Equal(t, claims.VerdictApproved, result.Decision.Decision)
	assert.Equal(t, []string{"Clause 1"}, result.Decision.ClauseReferences)
	require.NotEmpty(t, result.Retrieved)
	assert.Equal(t, "policy_knee.txt", result.Retrieved[0].Chunk.SourceDocument)
	assert.False(t, result.Cached)
}

func TestProcessClaimRejected(t *testing.T) {
	p := newTestPipeline(t, &keywordEmbedder{})
	require.NoError(t, p.Build(context.Background()))

	result, err := p.ProcessClaim(context.Background(), "diabetes management claim")
	require.NoError(t, err)

	assert.Equal(t, claims.VerdictRejected, result.Decision.Decision)
	assert.Equal(t, "policy_pre.txt", result.Retrieved[0].Chunk.SourceDocument)
}

func TestProcessClaimEmergencyOverride(t *testing.T) {
	p := newTestPipeline(t, &keywordEmbedder{})
	require.NoError(t, p.Build(context.Background()))

	result, err := p.ProcessClaim(context.Background(), "diabetes patient rushed to hospital in severe pain, 6-month policy")
	require.NoError(t, err)

	assert.Equal(t, claims.VerdictApproved, result.Decision.Decision)
	assert.True(t, result.Decision.EmergencyOverride)
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	p := newTestPipeline(t, &keywordEmbedder{failOn: "poison"})
	require.NoError(t, p.Build(context.Background()))

	questions := []string{
		"knee surgery, 4-month policy",
		"poison pill question",
		"diabetes claim",
	}

	items, successful := p.ProcessBatch(context.Background(), questions)

	require.Len(t, items, 3)
	assert.Equal(t, 2, successful)

	assert.False(t, items[0].Failed)
	assert.Equal(t, claims.VerdictApproved, items[0].Result.Decision.Decision)

	assert.True(t, items[1].Failed)
	assert.Equal(t, claims.VerdictReview, items[1].Result.Decision.Decision)

	assert.False(t, items[2].Failed)
	assert.Equal(t, claims.VerdictRejected, items[2].Result.Decision.Decision)

	// order matches the request
	for i, q := range questions {
		assert.Equal(t, q, items[i].Question)
	}
}

func TestBuildReusesCachedEmbeddings(t *testing.T) {
	embedder := &keywordEmbedder{}
	p := newTestPipeline(t, embedder)
	require.NoError(t, p.Build(context.Background()))
	size := p.IndexSize()

	// a second build of the unchanged corpus comes from the sqlite cache,
	// so a now-broken embedder is never called for corpus chunks
	embedder.failOn = "covered"
	require.NoError(t, p.Build(context.Background()))
	assert.Equal(t, size, p.IndexSize())
}

func TestProcessClaimRecordsHistory(t *testing.T) {
	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "policy.txt"),
		[]byte("Knee surgery is covered after a two month waiting period."), 0o644))

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	defer db.Close()

	p := New(
		ingestion.NewLoader(docsDir, ingestion.NewChunker(200, 0)),
		&keywordEmbedder{},
		engine.New(promptRouter{}, 3),
		db, nil,
		Options{TopK: 1, StoreFactory: func() index.Store { return index.NewMemory() }},
	)
	require.NoError(t, p.Build(context.Background()))

	result, err := p.ProcessClaim(context.Background(), "knee surgery claim")
	require.NoError(t, err)
	require.NotEmpty(t, result.ID)

	records, err := db.GetDecisionHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.ID, records[0].ID)
	assert.Equal(t, "knee surgery claim", records[0].ClaimText)
	assert.Equal(t, string(claims.VerdictApproved), records[0].Decision)
}

func TestProcessClaimEmbedderFailure(t *testing.T) {
	p := newTestPipeline(t, &keywordEmbedder{failOn: "knee"})
	require.NoError(t, p.Build(context.Background()))

	_, err := p.ProcessClaim(context.Background(), "knee surgery claim")
	require.Error(t, err)
	assert.True(t, errors.Is(err, claims.ErrServiceUnavailable))
}

// blockingEmbedder parks query embeds until the caller's context ends, so a
// test can cancel mid-claim.
type blockingEmbedder struct {
	keywordEmbedder
	entered chan struct{}
}

func (b *blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessClaimStopsOnContextCancel(t *testing.T) {
	embedder := &blockingEmbedder{entered: make(chan struct{}, 1)}
	p := newTestPipeline(t, embedder)
	require.NoError(t, p.Build(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.ProcessClaim(ctx, "knee surgery claim")
		done <- err
	}()

	<-embedder.entered
	cancel()

	err := <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
