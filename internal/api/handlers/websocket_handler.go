package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/pipeline"
	"github.com/claims-agent/backend/pkg/logger"
)

// WebSocketHandler streams claim evaluation phases to interactive clients
// so the UI can show progress while the model call is in flight.
type WebSocketHandler struct {
	pipeline *pipeline.Pipeline
}

func NewWebSocketHandler(p *pipeline.Pipeline) *WebSocketHandler {
	return &WebSocketHandler{pipeline: p}
}

// HandleConnection reads claims off the socket in a separate goroutine so a
// disconnect is noticed while a claim is still being evaluated. The
// per-connection context is cancelled on disconnect, aborting in-flight
// embedding and model calls.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())

	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	msgs := make(chan string)
	go h.readLoop(ctx, c, msgs, cancel)

	for claimText := range msgs {
		logger.Info("Processing WebSocket claim", zap.String("claim", claimText))

		err := h.streamDecision(ctx, c, claimText)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to stream decision", zap.Error(err))
			h.sendError(c, "Failed to process claim")
		}
	}
}

func (h *WebSocketHandler) readLoop(ctx context.Context, c *websocket.Conn, msgs chan<- string, cancel context.CancelFunc) {
	defer close(msgs)

	for {
		var msg struct {
			Type  string `json:"type"`
			Claim string `json:"claim"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Info("WebSocket read ended", zap.Error(err))
			cancel()
			return
		}

		if msg.Type != "claim" || msg.Claim == "" {
			continue
		}

		select {
		case msgs <- msg.Claim:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) streamDecision(ctx context.Context, c *websocket.Conn, claimText string) error {
	progress := func(phase string) {
		h.sendPhase(c, phase)
	}

	result, err := h.pipeline.ProcessClaimWithProgress(ctx, claimText, progress)
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":     "complete",
		"decision": decisionResponse(result),
	})
}

func (h *WebSocketHandler) sendPhase(c *websocket.Conn, phase string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "phase",
		"phase": phase,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
