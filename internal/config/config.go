/**
 * @description
 * Configuration loader for the InvestorCenter notification service.
 * Reads environment variables, applies defaults, and performs strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (DATABASE_URL, REDIS_URL) are missing.
 * - SMTP settings may be empty in local dev; the email channel logs and skips.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service
type Config struct {
	Server Server
	DB     DB
	Redis  Redis
	Queue  Queue
	SMTP   SMTP
	Auth   Auth
}

// Server holds HTTP server settings
type Server struct {
	Port       string // API server port
	HealthPort string // worker health/canary server port
	Env        string // "development" or "production"
	// ShutdownGrace bounds how long the health server waits for in-flight
	// requests during shutdown.
	ShutdownGrace time.Duration
	FrontendURL   string
}

// DB holds PostgreSQL settings
type DB struct {
	URL string
}

// Redis holds Redis settings
type Redis struct {
	URL string
}

// Queue holds the price-update stream consumer settings
type Queue struct {
	Stream     string // stream the price publisher fans out into
	DeadLetter string // stream for messages past MaxReceiveCount
	Group      string // consumer group name
	Consumer   string // consumer name within the group

	// BatchSize is how many messages to receive per poll (1-10).
	BatchSize int
	// WaitTime is the long-poll block duration of a single receive.
	WaitTime time.Duration
	// VisibilityTimeout is how long an unacknowledged message stays invisible
	// before it is redelivered.
	VisibilityTimeout time.Duration
	// MaxReceiveCount is the number of deliveries before a message is routed
	// to the dead-letter stream.
	MaxReceiveCount int
	// ReceiveBackoff is the sleep between failed receive attempts.
	ReceiveBackoff time.Duration
}

// SMTP holds email delivery settings
type SMTP struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// Auth holds API authentication settings
type Auth struct {
	JWKSURL     string // JWKS endpoint for user-facing API tokens
	CanaryToken string // shared secret for the canary endpoint
}

// Load reads .env (if present) and populates the Config struct
func Load() (*Config, error) {
	// Don't crash if .env is missing; prod injects env vars directly
	_ = godotenv.Load()

	cfg := &Config{
		Server: Server{
			Port:          getEnv("PORT", "8080"),
			HealthPort:    getEnv("HEALTH_PORT", "8090"),
			Env:           getEnv("GO_ENV", "development"),
			ShutdownGrace: getEnvAsDuration("SHUTDOWN_GRACE", 10*time.Second),
			FrontendURL:   getEnv("FRONTEND_URL", "https://investorcenter.ai"),
		},
		DB: DB{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: Redis{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Queue: Queue{
			Stream:            getEnv("PRICE_STREAM", "price-updates"),
			DeadLetter:        getEnv("PRICE_STREAM_DLQ", "price-updates-dlq"),
			Group:             getEnv("PRICE_STREAM_GROUP", "notification-service"),
			Consumer:          getEnv("PRICE_STREAM_CONSUMER", defaultConsumerName()),
			BatchSize:         getEnvAsInt("QUEUE_BATCH_SIZE", 10),
			WaitTime:          getEnvAsDuration("QUEUE_WAIT_TIME", 20*time.Second),
			VisibilityTimeout: getEnvAsDuration("QUEUE_VISIBILITY_TIMEOUT", 30*time.Second),
			MaxReceiveCount:   getEnvAsInt("QUEUE_MAX_RECEIVE_COUNT", 3),
			ReceiveBackoff:    getEnvAsDuration("QUEUE_RECEIVE_BACKOFF", 5*time.Second),
		},
		SMTP: SMTP{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnv("SMTP_PORT", "587"),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  sanitizeCredential(getEnv("SMTP_PASSWORD", "")),
			FromEmail: getEnv("SMTP_FROM_EMAIL", "alerts@investorcenter.ai"),
			FromName:  getEnv("SMTP_FROM_NAME", "InvestorCenter Alerts"),
		},
		Auth: Auth{
			JWKSURL:     getEnv("AUTH_JWKS_URL", ""),
			CanaryToken: sanitizeCredential(getEnv("CANARY_TOKEN", "")),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks required variables and clamps queue tuning to sane ranges
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.Queue.BatchSize < 1 || cfg.Queue.BatchSize > 10 {
		cfg.Queue.BatchSize = 10
	}
	if cfg.Queue.MaxReceiveCount < 1 {
		cfg.Queue.MaxReceiveCount = 3
	}
	if cfg.Auth.CanaryToken == "" && cfg.Server.Env == "production" {
		fmt.Println("Warning: CANARY_TOKEN is missing. The canary endpoint will reject all calls.")
	}
	return nil
}

// defaultConsumerName derives a stable per-process consumer name
func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "notifier-1"
	}
	return host
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper to get env var as duration (e.g. "20s", "5m")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}
