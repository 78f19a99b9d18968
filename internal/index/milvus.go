package index

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/pkg/logger"
)

// Milvus is the remote index backend for corpora too large to hold in
// process memory. The collection is dropped and recreated on Build so the
// remote state always mirrors the loaded corpus.
type Milvus struct {
	client         client.Client
	collectionName string
	vectorDim      int
	size           atomic.Int64
	built          atomic.Bool
}

func NewMilvus(endpoint, collectionName string, vectorDim int) (*Milvus, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus index client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Milvus{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Milvus) Close() error {
	return m.client.Close()
}

func (m *Milvus) Build(ctx context.Context, chunks []claims.PolicyChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		if err := m.client.DropCollection(ctx, m.collectionName); err != nil {
			return fmt.Errorf("failed to drop stale collection: %w", err)
		}
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Policy clause embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "source_document",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "position",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	chunkIDs := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	positions := make([]int64, len(chunks))
	embeddings := make([][]float32, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		texts[i] = chunk.Text
		sources[i] = chunk.SourceDocument
		positions[i] = int64(chunk.Position)
		embeddings[i] = normalize(vectors[i])
	}

	if len(chunks) > 0 {
		_, err = m.client.Insert(
			ctx,
			m.collectionName,
			"",
			entity.NewColumnVarChar("chunk_id", chunkIDs),
			entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
			entity.NewColumnVarChar("text", texts),
			entity.NewColumnVarChar("source_document", sources),
			entity.NewColumnInt64("position", positions),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}

		if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	m.size.Store(int64(len(chunks)))
	m.built.Store(true)

	logger.Info("Milvus index built",
		zap.String("collection", m.collectionName),
		zap.Int("chunks", len(chunks)),
	)

	return nil
}

func (m *Milvus) Search(ctx context.Context, vector []float32, k int) ([]claims.Retrieved, error) {
	if !m.built.Load() {
		return nil, claims.ErrNotReady
	}
	if k <= 0 {
		k = 5
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "text", "source_document", "position"},
		[]entity.Vector{entity.FloatVector(normalize(vector))},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: milvus search: %v", claims.ErrServiceUnavailable, err)
	}

	results := make([]claims.Retrieved, 0, k)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		sourceCol := sr.Fields.GetColumn("source_document")
		positionCol := sr.Fields.GetColumn("position")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			source, _ := sourceCol.Get(i)
			position, _ := positionCol.Get(i)

			results = append(results, claims.Retrieved{
				Chunk: claims.PolicyChunk{
					ID:             chunkID.(string),
					Text:           text.(string),
					SourceDocument: source.(string),
					Position:       int(position.(int64)),
				},
				Score: sr.Scores[i],
			})
		}
	}

	// Milvus order is score-descending already; re-sort to pin the
	// earlier-chunk-wins tie break.
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Chunk.Position < results[b].Chunk.Position
	})

	return results, nil
}

func (m *Milvus) Size() int {
	return int(m.size.Load())
}
