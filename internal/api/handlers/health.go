/**
 * @description
 * Health aggregator for the worker's sidecar HTTP server.
 * Reports 200 only when both the database and the queue consumer are good;
 * anything else is 503 so the orchestrator restarts the pod.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 */

package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger verifies database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PollHealth reports whether the queue consumer is actively polling.
type PollHealth interface {
	IsHealthy() bool
}

// HealthHandler aggregates component health into one probe endpoint.
type HealthHandler struct {
	db       Pinger
	consumer PollHealth
}

// NewHealthHandler creates the handler.
func NewHealthHandler(db Pinger, consumer PollHealth) *HealthHandler {
	return &HealthHandler{db: db, consumer: consumer}
}

// GetHealth handles GET /health.
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "error"
	}

	queueStatus := "polling"
	if !h.consumer.IsHealthy() {
		queueStatus = "stalled"
	}

	status := "ok"
	code := fiber.StatusOK
	if dbStatus != "connected" || queueStatus != "polling" {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"db":     dbStatus,
		"queue":  queueStatus,
	})
}
