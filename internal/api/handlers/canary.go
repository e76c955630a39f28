/**
 * @description
 * Synthetic email delivery probe.
 * POST /canary/email sends a real test email through the same SMTP path used
 * for alert notifications and reports the observed latency, so delivery
 * problems surface from monitoring instead of from user complaints.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 *
 * @notes
 * - Guarded by a shared bearer token, not user JWTs; this endpoint is for
 *   monitoring infrastructure only.
 */

package handlers

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/investorcenter/notification-service/internal/logger"
)

// TestSender sends the canary probe email.
type TestSender interface {
	SendTest(ctx context.Context, to string) error
}

// CanaryHandler exposes the delivery probe endpoint.
type CanaryHandler struct {
	sender TestSender
	token  string
}

// NewCanaryHandler creates the handler. An empty token disables the endpoint
// (every call is rejected).
func NewCanaryHandler(sender TestSender, token string) *CanaryHandler {
	return &CanaryHandler{sender: sender, token: token}
}

// PostEmail handles POST /canary/email.
func (h *CanaryHandler) PostEmail(c *fiber.Ctx) error {
	if !h.authorized(c.Get("Authorization")) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req struct {
		To   string `json:"to"`
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.To) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to is required"})
	}

	start := time.Now()
	if err := h.sender.SendTest(c.Context(), req.To); err != nil {
		logger.Error("Canary: test email to %s failed: %v", req.To, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "failed",
			"error":  err.Error(),
		})
	}
	latency := time.Since(start)

	logger.Info("Canary: test email delivered to %s in %s", req.To, latency)
	return c.JSON(fiber.Map{
		"status":     "sent",
		"latency_ms": latency.Milliseconds(),
	})
}

// authorized checks the shared bearer token in constant time.
func (h *CanaryHandler) authorized(header string) bool {
	if h.token == "" {
		return false
	}
	got := strings.TrimPrefix(header, "Bearer ")
	if got == header {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
