// Package pipeline wires ingestion, embedding, retrieval, and decisioning
// into the claim evaluation flow the API exposes.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/cache/redis"
	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/internal/engine"
	"github.com/claims-agent/backend/internal/index"
	"github.com/claims-agent/backend/internal/ingestion"
	"github.com/claims-agent/backend/internal/metrics"
	"github.com/claims-agent/backend/internal/normalizer"
	"github.com/claims-agent/backend/internal/storage/models"
	"github.com/claims-agent/backend/internal/storage/sqlite"
	"github.com/claims-agent/backend/pkg/logger"
	"github.com/claims-agent/backend/pkg/utils"
)

// Embedder is the slice of the LLM client the pipeline needs for vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Evaluator produces a decision from a normalized claim and its retrieved
// policy clauses.
type Evaluator interface {
	Evaluate(ctx context.Context, q claims.NormalizedQuery, retrieved []claims.Retrieved) claims.Decision
}

type Options struct {
	TopK         int
	FastPath     bool
	CacheTTL     time.Duration
	StoreFactory func() index.Store
}

type Pipeline struct {
	loader     *ingestion.Loader
	embedder   Embedder
	normalizer *normalizer.Normalizer
	engine     Evaluator
	db         *sqlite.Client
	cache      *redis.Client // nil when redis is disabled
	opts       Options

	mu    sync.RWMutex
	store index.Store

	ready atomic.Bool
	log   *zap.Logger
}

func New(loader *ingestion.Loader, embedder Embedder, eval Evaluator, db *sqlite.Client, cache *redis.Client, opts Options) *Pipeline {
	return &Pipeline{
		loader:     loader,
		embedder:   embedder,
		normalizer: normalizer.New(),
		engine:     eval,
		db:         db,
		cache:      cache,
		opts:       opts,
		store:      opts.StoreFactory(),
		log:        logger.GetLogger(),
	}
}

// Result is one processed claim with everything the handlers surface. ID is
// the decision_history row key so a response can be correlated with its
// audit record; cache hits keep the ID of the originally recorded decision.
type Result struct {
	ID         string
	Decision   claims.Decision
	Normalized claims.NormalizedQuery
	Retrieved  []claims.Retrieved
	Cached     bool
	FastPath   bool
	LatencyMS  int64
}

func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Build loads the corpus, obtains embeddings, and constructs the index.
// Embeddings for an unchanged corpus come from the SQLite cache instead of
// the embedding API. The service must not accept claims until Build returns.
func (p *Pipeline) Build(ctx context.Context) error {
	corpus, err := p.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	vectors, err := p.embedCorpus(ctx, corpus)
	if err != nil {
		return err
	}

	store := p.opts.StoreFactory()
	if err := store.Build(ctx, corpus.Chunks, vectors); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	p.mu.Lock()
	p.store = store
	p.mu.Unlock()
	p.ready.Store(true)

	metrics.ChunksIndexed.Set(float64(len(corpus.Chunks)))

	p.log.Info("pipeline ready",
		zap.Int("chunks", len(corpus.Chunks)),
		zap.Int("skipped_files", len(corpus.Skipped)),
		zap.String("fingerprint", corpus.Fingerprint))

	return nil
}

func (p *Pipeline) embedCorpus(ctx context.Context, corpus *ingestion.Corpus) ([][]float32, error) {
	cached, err := p.db.LoadCorpus(corpus.Fingerprint)
	if err != nil {
		p.log.Warn("corpus cache read failed, re-embedding", zap.Error(err))
	}
	if len(cached) == len(corpus.Chunks) && len(cached) > 0 {
		metrics.CacheHits.WithLabelValues("corpus").Inc()
		p.log.Info("corpus embeddings loaded from cache", zap.Int("chunks", len(cached)))
		vectors := make([][]float32, len(cached))
		for i, r := range cached {
			vectors[i] = r.Embedding
		}
		return vectors, nil
	}
	metrics.CacheMisses.WithLabelValues("corpus").Inc()

	texts := make([]string, len(corpus.Chunks))
	for i, ch := range corpus.Chunks {
		texts[i] = ch.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed corpus: %w", err)
	}

	records := make([]models.ChunkRecord, len(corpus.Chunks))
	for i, ch := range corpus.Chunks {
		records[i] = models.ChunkRecord{
			ID:             ch.ID,
			Position:       ch.Position,
			Text:           ch.Text,
			SourceDocument: ch.SourceDocument,
			Embedding:      vectors[i],
		}
	}
	if err := p.db.SaveCorpus(corpus.Fingerprint, records); err != nil {
		p.log.Warn("corpus cache write failed", zap.Error(err))
	}

	metrics.DocumentsProcessed.Add(float64(len(corpus.Chunks)))

	return vectors, nil
}

// Rebuild re-runs ingestion and index construction, swapping in the new
// index atomically. In-flight claims keep using the old index until the
// swap. Cached decisions are dropped since their citations may be stale.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	if err := p.Build(ctx); err != nil {
		return err
	}
	if p.cache != nil {
		if err := p.cache.InvalidateDecisionCache(ctx); err != nil {
			p.log.Warn("decision cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

func (p *Pipeline) currentStore() index.Store {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store
}

func (p *Pipeline) IndexSize() int {
	return p.currentStore().Size()
}

// ProcessClaim evaluates a single claim end to end.
func (p *Pipeline) ProcessClaim(ctx context.Context, rawText string) (*Result, error) {
	return p.processClaim(ctx, rawText, nil)
}

// ProcessClaimWithProgress is ProcessClaim with a phase callback for
// streaming consumers. The callback must not block.
func (p *Pipeline) ProcessClaimWithProgress(ctx context.Context, rawText string, progress func(phase string)) (*Result, error) {
	return p.processClaim(ctx, rawText, progress)
}

func (p *Pipeline) processClaim(ctx context.Context, rawText string, progress func(string)) (*Result, error) {
	if !p.ready.Load() {
		return nil, claims.ErrNotReady
	}

	start := time.Now()
	report := func(phase string) {
		if progress != nil {
			progress(phase)
		}
	}

	report("normalizing")
	normalized := p.normalizer.Normalize(rawText)
	claimHash := utils.HashString(rawText)
	decisionID := uuid.New().String()

	if p.cache != nil {
		var cached cachedDecision
		hit, err := p.cache.GetDecision(ctx, claimHash, &cached)
		if err != nil {
			p.log.Warn("decision cache read failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("decision").Inc()
			return p.finish(&Result{ID: cached.ID, Decision: cached.Decision, Normalized: normalized, Cached: true}, start), nil
		}
		metrics.CacheMisses.WithLabelValues("decision").Inc()
	}

	if p.opts.FastPath {
		if decision, ok := engine.FastPath(normalized); ok {
			p.log.Info("fast path decision",
				zap.String("decision", string(decision.Decision)))
			result := &Result{ID: decisionID, Decision: decision, Normalized: normalized, FastPath: true}
			p.record(ctx, rawText, normalized, result, start)
			return p.finish(result, start), nil
		}
	}

	report("retrieving")
	retrieved, err := p.retrieve(ctx, normalized)
	if err != nil {
		return nil, err
	}
	metrics.RetrievedPerClaim.Observe(float64(len(retrieved)))

	report("evaluating")
	decision := p.engine.Evaluate(ctx, normalized, retrieved)

	result := &Result{ID: decisionID, Decision: decision, Normalized: normalized, Retrieved: retrieved}
	p.record(ctx, rawText, normalized, result, start)

	if p.cache != nil {
		if err := p.cache.SetDecision(ctx, claimHash, cachedDecision{ID: decisionID, Decision: decision}, p.opts.CacheTTL); err != nil {
			p.log.Warn("decision cache write failed", zap.Error(err))
		}
	}

	return p.finish(result, start), nil
}

func (p *Pipeline) retrieve(ctx context.Context, q claims.NormalizedQuery) ([]claims.Retrieved, error) {
	vector, err := p.embedQuery(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed claim: %w", err)
	}

	retrieved, err := p.currentStore().Search(ctx, vector, p.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return retrieved, nil
}

func (p *Pipeline) embedQuery(ctx context.Context, text string) ([]float32, error) {
	textHash := utils.HashString(text)

	if p.cache != nil {
		vec, hit, err := p.cache.GetEmbedding(ctx, textHash)
		if err != nil {
			p.log.Warn("embedding cache read failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return vec, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetEmbedding(ctx, textHash, vec, p.opts.CacheTTL); err != nil {
			p.log.Warn("embedding cache write failed", zap.Error(err))
		}
	}

	return vec, nil
}

func (p *Pipeline) finish(result *Result, start time.Time) *Result {
	result.LatencyMS = time.Since(start).Milliseconds()

	metrics.ClaimTotal.WithLabelValues(string(result.Decision.Decision)).Inc()
	metrics.ConfidenceScore.Observe(result.Decision.Confidence)
	if result.Decision.EmergencyOverride {
		metrics.EmergencyOverrides.Inc()
	}
	path := "full"
	switch {
	case result.Cached:
		path = "cached"
	case result.FastPath:
		path = "fast"
	}
	metrics.ClaimDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	return result
}

// cachedDecision is the redis payload for a finished decision. Carrying the
// ID lets cache hits point back at the original audit row.
type cachedDecision struct {
	ID       string          `json:"id"`
	Decision claims.Decision `json:"decision"`
}

func (p *Pipeline) record(ctx context.Context, rawText string, q claims.NormalizedQuery, result *Result, start time.Time) {
	record := &models.DecisionRecord{
		ID:                result.ID,
		ClaimText:         rawText,
		NormalizedText:    q.Text,
		Decision:          string(result.Decision.Decision),
		Amount:            result.Decision.Amount,
		Justification:     result.Decision.Justification,
		ClauseReferences:  result.Decision.ClauseReferences,
		EmergencyOverride: result.Decision.EmergencyOverride,
		Confidence:        result.Decision.Confidence,
		LatencyMS:         time.Since(start).Milliseconds(),
		CreatedAt:         time.Now(),
	}
	if err := p.db.InsertDecision(record); err != nil {
		p.log.Warn("decision history write failed", zap.Error(err))
	}
}

// BatchItem is one question's outcome inside a batch. Failed marks questions
// whose processing errored and degraded to a placeholder review decision.
type BatchItem struct {
	Question string
	Result   *Result
	Failed   bool
}

// ProcessBatch evaluates questions independently and in order. A failure on
// one question degrades that question to a review decision instead of
// failing the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, questions []string) ([]BatchItem, int) {
	items := make([]BatchItem, len(questions))
	successful := 0

	for i, q := range questions {
		result, err := p.ProcessClaim(ctx, q)
		failed := err != nil
		if failed {
			p.log.Warn("batch question failed",
				zap.Int("question_index", i),
				zap.Error(err))
			result = &Result{
				ID: uuid.New().String(),
				Decision: claims.Decision{
					Decision:                claims.VerdictReview,
					Justification:           "Processing failed for this question; it has been routed to a human reviewer.",
					UserFriendlyExplanation: "We could not process this question automatically, so it will be reviewed manually.",
				},
				Normalized: claims.NormalizedQuery{RawText: q, Text: q},
			}
		} else {
			successful++
		}
		items[i] = BatchItem{Question: q, Result: result, Failed: failed}
	}

	return items, successful
}
