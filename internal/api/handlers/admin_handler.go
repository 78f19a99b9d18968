package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/pipeline"
	"github.com/claims-agent/backend/internal/storage/sqlite"
	"github.com/claims-agent/backend/pkg/logger"
)

type AdminHandler struct {
	pipeline *pipeline.Pipeline
	db       *sqlite.Client
}

func NewAdminHandler(p *pipeline.Pipeline, db *sqlite.Client) *AdminHandler {
	return &AdminHandler{pipeline: p, db: db}
}

// HandleRebuild re-ingests the policy corpus and swaps in a fresh index.
// POST /api/v1/rebuild
func (h *AdminHandler) HandleRebuild(c *fiber.Ctx) error {
	logger.Info("Corpus rebuild requested")

	if err := h.pipeline.Rebuild(c.Context()); err != nil {
		logger.Error("Corpus rebuild failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Rebuild failed",
		})
	}

	return c.JSON(fiber.Map{
		"status":         "rebuilt",
		"chunks_indexed": h.pipeline.IndexSize(),
	})
}

// HandleDecisionHistory lists recent decisions for auditing.
// GET /api/v1/decisions
func (h *AdminHandler) HandleDecisionHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	records, err := h.db.GetDecisionHistory(limit)
	if err != nil {
		logger.Error("Failed to load decision history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load decision history",
		})
	}

	decisions := make([]fiber.Map, len(records))
	for i, r := range records {
		decisions[i] = fiber.Map{
			"id":                 r.ID,
			"claim":              r.ClaimText,
			"normalized_claim":   r.NormalizedText,
			"decision":           r.Decision,
			"amount":             r.Amount,
			"justification":      r.Justification,
			"clause_references":  r.ClauseReferences,
			"emergency_override": r.EmergencyOverride,
			"confidence":         r.Confidence,
			"latency_ms":         r.LatencyMS,
			"created_at":         r.CreatedAt,
		}
	}

	return c.JSON(fiber.Map{
		"decisions": decisions,
		"count":     len(decisions),
	})
}
