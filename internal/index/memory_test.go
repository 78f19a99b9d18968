package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claims-agent/backend/internal/claims"
)

func testChunks(n int) []claims.PolicyChunk {
	chunks := make([]claims.PolicyChunk, n)
	for i := range chunks {
		chunks[i] = claims.PolicyChunk{
			ID:             string(rune('a' + i)),
			Text:           "clause",
			SourceDocument: "policy.txt",
			Position:       i,
		}
	}
	return chunks
}

func TestMemorySearchRanksByCosine(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	require.NoError(t, m.Build(ctx, testChunks(3), vectors))

	results, err := m.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 0, results[0].Chunk.Position)
	assert.Equal(t, 2, results[1].Chunk.Position)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemorySearchTieBreaksOnPosition(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// identical vectors produce identical scores
	vectors := [][]float32{
		{1, 0},
		{1, 0},
		{1, 0},
	}
	require.NoError(t, m.Build(ctx, testChunks(3), vectors))

	results, err := m.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, i, r.Chunk.Position)
	}
}

func TestMemorySearchKLargerThanCorpus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, testChunks(2), [][]float32{{1, 0}, {0, 1}}))

	results, err := m.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemorySearchBeforeBuild(t *testing.T) {
	m := NewMemory()

	_, err := m.Search(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, claims.ErrNotReady)
	assert.Equal(t, 0, m.Size())
}

func TestMemoryBuildRejectsMismatchedInput(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Build(ctx, testChunks(2), [][]float32{{1, 0}})
	assert.Error(t, err)

	err = m.Build(ctx, testChunks(2), [][]float32{{1, 0}, {1, 0, 0}})
	assert.Error(t, err)
}

func TestMemoryBuildIsSingleShot(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, testChunks(1), [][]float32{{1, 0}}))
	assert.Error(t, m.Build(ctx, testChunks(1), [][]float32{{1, 0}}))
	assert.Equal(t, 1, m.Size())
}

func TestMemorySearchIsDeterministic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	vectors := [][]float32{
		{0.5, 0.5},
		{0.5, 0.5},
		{1, 0},
		{0, 1},
	}
	require.NoError(t, m.Build(ctx, testChunks(4), vectors))

	first, err := m.Search(ctx, []float32{0.7, 0.3}, 4)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := m.Search(ctx, []float32{0.7, 0.3}, 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
