package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClaimDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claims_agent_claim_duration_seconds",
			Help:    "Claim processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path"},
	)

	ClaimTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_agent_claim_total",
			Help: "Total number of claims processed",
		},
		[]string{"decision"},
	)

	EmergencyOverrides = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "claims_agent_emergency_overrides_total",
			Help: "Total claims approved by the emergency override rule",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_agent_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claims_agent_confidence_score",
			Help:    "Decision confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	RetrievedPerClaim = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claims_agent_retrieved_chunks_count",
			Help:    "Number of policy chunks retrieved per claim",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_agent_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_agent_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "claims_agent_documents_processed_total",
			Help: "Total policy documents processed",
		},
	)

	ChunksIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "claims_agent_chunks_indexed",
			Help: "Number of policy chunks in the similarity index",
		},
	)
)

func Init() {
	prometheus.MustRegister(ClaimDuration)
	prometheus.MustRegister(ClaimTotal)
	prometheus.MustRegister(EmergencyOverrides)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(RetrievedPerClaim)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksIndexed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
