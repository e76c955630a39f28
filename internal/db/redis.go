/**
 * @description
 * Redis connection manager using go-redis.
 * Backs the price-update stream (consumer group) and its dead-letter stream.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 */

package db

import (
	"context"
	"time"

	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes the Redis client
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	// The consumer long-polls with XREADGROUP BLOCK, so the read timeout must
	// stay comfortably above the configured wait time.
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = cfg.Queue.WaitTime + 10*time.Second
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = 5 * time.Second
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = 2
	}
	if opt.MinRetryBackoff == 0 {
		opt.MinRetryBackoff = 200 * time.Millisecond
	}
	if opt.MaxRetryBackoff == 0 {
		opt.MaxRetryBackoff = 2 * time.Second
	}

	client := redis.NewClient(opt)

	// Ping to verify connection
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	logger.Info("✅ Connected to Redis")
	return client, nil
}
