package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/internal/pipeline"
	"github.com/claims-agent/backend/pkg/logger"
)

type ClaimHandler struct {
	pipeline *pipeline.Pipeline
}

func NewClaimHandler(p *pipeline.Pipeline) *ClaimHandler {
	return &ClaimHandler{pipeline: p}
}

// HandleClaim evaluates one claim.
// POST /api/v1/claims
func (h *ClaimHandler) HandleClaim(c *fiber.Ctx) error {
	var req struct {
		Claim string `json:"claim"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Claim == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Claim text is required",
		})
	}

	result, err := h.pipeline.ProcessClaim(c.Context(), req.Claim)
	if err != nil {
		if errors.Is(err, claims.ErrNotReady) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service is still indexing policy documents",
			})
		}
		logger.Error("Failed to process claim", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process claim",
		})
	}

	return c.JSON(decisionResponse(result))
}

func decisionResponse(result *pipeline.Result) fiber.Map {
	d := result.Decision
	return fiber.Map{
		"id":                        result.ID,
		"claim":                     result.Normalized.RawText,
		"normalized_claim":          result.Normalized.Text,
		"decision":                  d.Decision,
		"amount":                    d.Amount,
		"justification":             d.Justification,
		"user_friendly_explanation": d.UserFriendlyExplanation,
		"clause_references":         d.ClauseReferences,
		"emergency_override":        d.EmergencyOverride,
		"specialist_recommendation": d.SpecialistRecommendation,
		"confidence":                d.Confidence,
		"cached":                    result.Cached,
		"latency_ms":                result.LatencyMS,
	}
}
