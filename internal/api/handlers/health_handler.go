package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/claims-agent/backend/internal/pipeline"
)

type HealthHandler struct {
	pipeline *pipeline.Pipeline
}

func NewHealthHandler(p *pipeline.Pipeline) *HealthHandler {
	return &HealthHandler{pipeline: p}
}

// HandleHealth reports process liveness.
// GET /health
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// HandleReady reports whether the index is built and claims can be served.
// GET /ready
func (h *HealthHandler) HandleReady(c *fiber.Ctx) error {
	if !h.pipeline.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "indexing",
		})
	}
	return c.JSON(fiber.Map{
		"status":         "ready",
		"chunks_indexed": h.pipeline.IndexSize(),
	})
}
