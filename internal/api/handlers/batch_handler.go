package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/pipeline"
	"github.com/claims-agent/backend/pkg/logger"
)

const maxBatchQuestions = 50

type BatchHandler struct {
	pipeline *pipeline.Pipeline
}

func NewBatchHandler(p *pipeline.Pipeline) *BatchHandler {
	return &BatchHandler{pipeline: p}
}

// HandleBatch evaluates a list of claim questions in one request. Questions
// are independent: one failing degrades to a review answer, the rest still
// get real decisions.
// POST /api/v1/claims/batch
func (h *BatchHandler) HandleBatch(c *fiber.Ctx) error {
	var req struct {
		DocumentSource string   `json:"document_source"`
		Questions      []string `json:"questions"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Questions) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one question is required",
		})
	}

	if len(req.Questions) > maxBatchQuestions {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Too many questions in one batch",
		})
	}

	if !h.pipeline.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service is still indexing policy documents",
		})
	}

	start := time.Now()
	items, successful := h.pipeline.ProcessBatch(c.Context(), req.Questions)

	answers := make([]fiber.Map, len(items))
	for i, item := range items {
		answer := decisionResponse(item.Result)
		answer["question"] = item.Question
		answer["successful"] = !item.Failed
		answers[i] = answer
	}

	logger.Info("Batch processed",
		zap.Int("total_questions", len(req.Questions)),
		zap.Int("successful_answers", successful),
		zap.Duration("elapsed", time.Since(start)))

	return c.JSON(fiber.Map{
		"answers":                 answers,
		"processing_time_seconds": time.Since(start).Seconds(),
		"total_questions":         len(req.Questions),
		"successful_answers":      successful,
	})
}
