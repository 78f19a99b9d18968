// Package index provides nearest-neighbor lookup over policy chunk
// embeddings. A store is built exactly once at startup and is read-only
// afterwards; query traffic must not be accepted before Build succeeds.
package index

import (
	"context"

	"github.com/claims-agent/backend/internal/claims"
)

// Store is the similarity index contract. Search returns up to k chunks in
// descending similarity order, ties broken by ascending chunk position so
// results are deterministic.
type Store interface {
	Build(ctx context.Context, chunks []claims.PolicyChunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]claims.Retrieved, error)
	Size() int
}
