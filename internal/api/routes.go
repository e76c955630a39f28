/**
 * @description
 * Route definitions for the two HTTP surfaces of the service: the user-facing
 * alerts API and the worker's health/canary sidecar.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/api/handlers
 * - internal/api/middleware
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/investorcenter/notification-service/internal/api/handlers"
	"github.com/investorcenter/notification-service/internal/api/middleware"
	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/investorcenter/notification-service/internal/store"
)

// SetupRoutes configures the user-facing alerts API.
func SetupRoutes(app *fiber.App, st *store.Store, cfg *config.Config) {
	// 1. Initialize Middleware
	if err := middleware.InitAuthMiddleware(cfg); err != nil {
		logger.Error("Failed to init auth middleware: %v", err)
		// We don't panic here to allow app to start in dev modes without valid keys,
		// but protected routes will fail.
	}

	// 2. Initialize Handlers
	alertsHandler := handlers.NewAlertsHandler(st)

	// 3. Define Routes
	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Public Routes
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Alert Routes (Protected)
	alerts := v1.Group("/alerts", middleware.Protected())
	alerts.Post("/", alertsHandler.CreateAlert)
	alerts.Get("/", alertsHandler.ListAlerts)
	alerts.Get("/logs", alertsHandler.ListLogs)
	alerts.Post("/logs/:id/read", alertsHandler.MarkLogRead)
	alerts.Post("/logs/:id/dismiss", alertsHandler.MarkLogDismissed)
	alerts.Get("/:id", alertsHandler.GetAlert)
	alerts.Patch("/:id", alertsHandler.UpdateAlert)
	alerts.Delete("/:id", alertsHandler.DeleteAlert)
}

// NewHealthApp builds the worker's sidecar server: the aggregated health
// probe and the canary delivery endpoint. Runs on its own port so probe
// traffic never mixes with user traffic.
func NewHealthApp(db handlers.Pinger, consumer handlers.PollHealth, sender handlers.TestSender, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	healthHandler := handlers.NewHealthHandler(db, consumer)
	canaryHandler := handlers.NewCanaryHandler(sender, cfg.Auth.CanaryToken)

	app.Get("/health", healthHandler.GetHealth)
	app.Post("/canary/email", canaryHandler.PostEmail)

	return app
}
