package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxClaimLength      int
	MaxBatchQuestions   int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects malformed claim payloads before they reach the
// pipeline: wrong content types, oversized claim text, empty or oversized
// batches.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxClaimLength == 0 {
		cfg.MaxClaimLength = 5000
	}
	if cfg.MaxBatchQuestions == 0 {
		cfg.MaxBatchQuestions = 50
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		path := c.Path()

		if strings.HasSuffix(path, "/claims/batch") {
			var req struct {
				Questions []string `json:"questions"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			for _, q := range req.Questions {
				if len(q) > cfg.MaxClaimLength {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Question exceeds maximum length",
					})
				}
			}
		} else if strings.HasSuffix(path, "/claims") {
			var req struct {
				Claim string `json:"claim"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			claimText := strings.TrimSpace(req.Claim)
			if claimText == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Claim text is required",
				})
			}

			if len(claimText) > cfg.MaxClaimLength {
				cfg.Logger.Warn("Oversized claim rejected",
					zap.String("ip", c.IP()),
					zap.Int("length", len(claimText)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Claim exceeds maximum length",
				})
			}
		}

		return c.Next()
	}
}
