/**
 * @description
 * Alert worker entry point.
 * Runs the price-update pipeline: queue consumer → rule evaluator → delivery
 * router, plus the health/canary sidecar server on its own port.
 *
 * @dependencies
 * - internal/config
 * - internal/db
 * - internal/queue
 * - internal/evaluator
 * - internal/delivery
 * - internal/api (health sidecar)
 *
 * @notes
 * - Deploy exactly one replica: the trigger claim is atomic per rule, but two
 *   consumers would double the evaluation work for nothing.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/investorcenter/notification-service/internal/api"
	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/db"
	"github.com/investorcenter/notification-service/internal/delivery"
	"github.com/investorcenter/notification-service/internal/evaluator"
	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/investorcenter/notification-service/internal/queue"
	"github.com/investorcenter/notification-service/internal/store"
)

func main() {
	logger.Info("🔥 Starting InvestorCenter alert worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Wire the pipeline
	st := store.New(pgDB)
	emailChannel := delivery.NewEmailChannel(cfg.SMTP, cfg.Server.FrontendURL, st)
	inAppChannel := delivery.NewInAppChannel(st)
	router := delivery.NewRouter(st, emailChannel, inAppChannel)
	eval := evaluator.New(st, router)
	consumer := queue.NewConsumer(redisClient, cfg.Queue)

	// 4. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Health/canary sidecar
	healthApp := api.NewHealthApp(st, consumer, emailChannel, cfg)
	go func() {
		if err := healthApp.Listen(":" + cfg.Server.HealthPort); err != nil {
			logger.Error("❌ Health server failed: %v", err)
		}
	}()

	// 6. Consumer loop
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Start(ctx, func(payload []byte) error {
			return eval.HandlePriceUpdate(ctx, payload)
		})
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-done:
	case <-time.After(cfg.Server.ShutdownGrace):
		logger.Error("Consumer did not stop within grace period")
	}

	if err := healthApp.ShutdownWithTimeout(cfg.Server.ShutdownGrace); err != nil {
		logger.Error("Error stopping health server: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("Error closing Redis: %v", err)
	}
	logger.Info("Worker exited.")
}
