package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/pkg/logger"
)

// Memory is a brute-force cosine-similarity index held in process memory.
// Build normalizes every vector once so Search reduces to dot products.
// After Build the slices are never written again, which is what makes
// lock-free concurrent Search calls safe.
type Memory struct {
	chunks  []claims.PolicyChunk
	vectors [][]float32
	built   atomic.Bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Build(ctx context.Context, chunks []claims.PolicyChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if m.built.Load() {
		return fmt.Errorf("index already built")
	}

	dim := 0
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
		normalized[i] = normalize(v)
	}

	m.chunks = chunks
	m.vectors = normalized
	m.built.Store(true)

	logger.Info("In-memory index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", dim),
	)

	return nil
}

func (m *Memory) Search(ctx context.Context, vector []float32, k int) ([]claims.Retrieved, error) {
	if !m.built.Load() {
		return nil, claims.ErrNotReady
	}
	if k <= 0 {
		k = 5
	}

	query := normalize(vector)

	type scored struct {
		idx   int
		score float32
	}

	scores := make([]scored, len(m.vectors))
	for i, v := range m.vectors {
		scores[i] = scored{idx: i, score: dot(v, query)}
	}

	// Earlier chunk wins on equal score, keyed by original position.
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return m.chunks[scores[a].idx].Position < m.chunks[scores[b].idx].Position
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]claims.Retrieved, 0, k)
	for i := 0; i < k; i++ {
		s := scores[i]
		results = append(results, claims.Retrieved{
			Chunk: m.chunks[s.idx],
			Score: s.score,
		})
	}

	return results, nil
}

func (m *Memory) Size() int {
	if !m.built.Load() {
		return 0
	}
	return len(m.chunks)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
