/**
 * @description
 * Main entry point for the user-facing alerts API.
 * Initializes the Fiber web server, loads configuration, and sets up routes.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - internal/config: Config loader
 * - internal/db: Database connections
 *
 * @notes
 * - Connects to Postgres on startup; the API surface never touches the queue.
 * - Sets up basic middleware (CORS, Logger, Recover).
 */

package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/investorcenter/notification-service/internal/api"
	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/db"
	"github.com/investorcenter/notification-service/internal/store"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Database Connection
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	st := store.New(pgDB)

	// 3. Initialize Fiber App
	app := fiber.New(fiber.Config{
		AppName:       "InvestorCenter Alerts API",
		StrictRouting: false,
		CaseSensitive: true,
	})

	// 4. Global Middleware
	app.Use(recover.New())     // Panic recovery
	app.Use(fiberlogger.New()) // Request logging
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.FrontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	// 5. Routes
	api.SetupRoutes(app, st, cfg)

	// 6. Start Server
	log.Printf("🚀 Starting alerts API on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
