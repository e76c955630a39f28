/**
 * @description
 * Price feed simulator for local development.
 * Publishes synthetic price-update batches to the stream at a fixed interval
 * so the worker pipeline can be exercised without the real price publisher.
 *
 * Usage:
 *   go run ./cmd/feedsim -symbols AAPL,TSLA -interval 5s
 */

package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/db"
	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/investorcenter/notification-service/internal/models"
	"github.com/investorcenter/notification-service/internal/queue"
)

func main() {
	symbolsFlag := flag.String("symbols", "AAPL,TSLA,NVDA", "comma-separated symbols to simulate")
	interval := flag.Duration("interval", 5*time.Second, "publish interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	pub := queue.NewPublisher(redisClient, cfg.Queue.Stream)

	symbols := strings.Split(*symbolsFlag, ",")
	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		prices[s] = 50 + rand.Float64()*200
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	logger.Info("Feed simulator publishing %d symbols to %s every %s", len(symbols), cfg.Queue.Stream, *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Feed simulator stopped.")
			return
		case <-ticker.C:
			batch := nextBatch(symbols, prices)
			if err := pub.Publish(ctx, batch); err != nil {
				logger.Error("Publish failed: %v", err)
				continue
			}
			logger.Info("Published batch ts=%d (%d symbols)", batch.Timestamp, len(batch.Symbols))
		}
	}
}

// nextBatch applies a small random walk to each price and assembles a batch.
func nextBatch(symbols []string, prices map[string]float64) *models.PriceUpdateBatch {
	now := time.Now().Unix()
	quotes := make(map[string]models.Quote, len(symbols))

	for _, s := range symbols {
		prev := prices[s]
		// Walk up to ±1% per tick.
		next := prev * (1 + (rand.Float64()-0.5)*0.02)
		prices[s] = next

		avg := 1_000_000 + rand.Float64()*4_000_000
		quotes[s] = models.Quote{
			Price:     next,
			Volume:    int64(avg * (0.5 + rand.Float64()*2)),
			ChangePct: (next - prev) / prev * 100,
			AvgVolume: avg,
			Timestamp: now,
			Updated:   true,
		}
	}

	return &models.PriceUpdateBatch{
		Timestamp: now,
		Source:    "feedsim",
		Symbols:   quotes,
	}
}
