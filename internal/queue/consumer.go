/**
 * @description
 * Price-update queue consumer.
 * Long-polls a Redis Stream through a consumer group and dispatches each
 * message payload to a handler. Unacknowledged messages become visible again
 * after the visibility timeout and are redelivered; messages past the maximum
 * receive count are routed to a dead-letter stream for manual inspection.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 *
 * @notes
 * - Designed to run as exactly one active replica; trigger bookkeeping has no
 *   distributed lock, so concurrent replicas would double-fire alerts.
 * - Health flips to unhealthy only after several consecutive receive errors,
 *   so a transient blip never trips the orchestrator into a restart.
 */

package queue

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/redis/go-redis/v9"
)

// Handler processes a raw message payload (the unwrapped batch JSON).
type Handler func(payload []byte) error

// maxConsecutiveFailures is the number of consecutive receive errors before
// the consumer reports itself unhealthy.
const maxConsecutiveFailures = 3

// bodyField is the stream entry field carrying the message body.
const bodyField = "body"

// Consumer long-polls the price-update stream and dispatches messages to a
// handler, one poll cycle at a time.
type Consumer struct {
	rdb *redis.Client
	cfg config.Queue

	healthy          atomic.Bool
	consecutiveFails atomic.Int32
}

// NewConsumer creates a consumer for the configured stream and group.
func NewConsumer(rdb *redis.Client, cfg config.Queue) *Consumer {
	c := &Consumer{rdb: rdb, cfg: cfg}
	c.healthy.Store(true)
	return c
}

// IsHealthy returns whether the consumer is actively polling.
func (c *Consumer) IsHealthy() bool {
	return c.healthy.Load()
}

// Start begins long-polling the stream. Blocks until ctx is cancelled.
// Each message is passed to handler; on success the message is acknowledged.
// On handler error the message stays pending and is redelivered after the
// visibility timeout, up to MaxReceiveCount deliveries before it is moved to
// the dead-letter stream.
func (c *Consumer) Start(ctx context.Context, handler Handler) {
	if err := c.ensureGroup(ctx); err != nil {
		logger.Error("Queue consumer: failed to create consumer group: %v", err)
	}

	logger.Info("Queue consumer started — polling %s as %s/%s (batch %d)",
		c.cfg.Stream, c.cfg.Group, c.cfg.Consumer, c.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			// Intentional shutdown; unhealthy is part of draining, not failure.
			c.healthy.Store(false)
			logger.Info("Queue consumer stopped")
			return
		default:
			c.poll(ctx, handler)
		}
	}
}

// ensureGroup creates the consumer group at the stream tail, creating the
// stream itself if it does not exist yet.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// poll performs one cycle: reclaim expired pending messages, then block on a
// fresh read for up to the configured wait time.
func (c *Consumer) poll(ctx context.Context, handler Handler) {
	c.reclaim(ctx, handler)

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    int64(c.cfg.BatchSize),
		Block:    c.cfg.WaitTime,
	}).Result()
	if err == redis.Nil {
		// Long poll elapsed with nothing to read; still a successful receive.
		c.recordSuccess()
		return
	}
	if err != nil {
		// Context cancelled is expected during shutdown, not a failure.
		if ctx.Err() != nil {
			return
		}
		c.recordFailure(ctx, err)
		return
	}

	c.recordSuccess()

	for _, stream := range res {
		for _, msg := range stream.Messages {
			c.process(ctx, handler, msg)
		}
	}
}

// reclaim takes over pending messages whose visibility timeout elapsed.
// Messages already delivered MaxReceiveCount times go to the dead-letter
// stream; the rest are handed to the handler like a fresh delivery.
func (c *Consumer) reclaim(ctx context.Context, handler Handler) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   c.cfg.VisibilityTimeout,
		Start:  "-",
		End:    "+",
		Count:  int64(c.cfg.BatchSize),
	}).Result()
	if err != nil || len(pending) == 0 {
		if err != nil && ctx.Err() == nil {
			logger.Error("Queue consumer: pending scan failed: %v", err)
		}
		return
	}

	// Delivery counts before the claim below bumps them.
	deliveries := make(map[string]int64, len(pending))
	for _, p := range pending {
		deliveries[p.ID] = p.RetryCount
	}

	claimed, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.VisibilityTimeout,
		Start:    "0-0",
		Count:    int64(c.cfg.BatchSize),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Queue consumer: reclaim failed: %v", err)
		}
		return
	}

	for _, msg := range claimed {
		if deliveries[msg.ID] >= int64(c.cfg.MaxReceiveCount) {
			c.deadLetter(ctx, msg)
			continue
		}
		c.process(ctx, handler, msg)
	}
}

// process unwraps one message and runs the handler.
func (c *Consumer) process(ctx context.Context, handler Handler, msg redis.XMessage) {
	body, _ := msg.Values[bodyField].(string)

	payload, err := ExtractPayload([]byte(body))
	if err != nil {
		// Poison message: retrying can never fix a missing body. Drop it.
		logger.Error("Queue consumer: dropping message %s: %v", msg.ID, err)
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler(payload); err != nil {
		logger.Error("Queue consumer: handler error on %s: %v — message will be retried", msg.ID, err)
		// No ack — the message stays pending and is redelivered after the
		// visibility timeout.
		return
	}

	c.ack(ctx, msg.ID)
}

// deadLetter copies a message to the dead-letter stream and acknowledges it
// on the source stream.
func (c *Consumer) deadLetter(ctx context.Context, msg redis.XMessage) {
	logger.Error("Queue consumer: message %s exceeded %d deliveries — routing to %s",
		msg.ID, c.cfg.MaxReceiveCount, c.cfg.DeadLetter)

	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DeadLetter,
		Values: msg.Values,
	}).Err()
	if err != nil {
		// Leave it pending; a later cycle retries the move.
		logger.Error("Queue consumer: dead-letter write failed for %s: %v", msg.ID, err)
		return
	}

	c.ack(ctx, msg.ID)
}

// ack acknowledges (deletes) a processed message.
func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil && ctx.Err() == nil {
		logger.Error("Queue consumer: failed to ack message %s: %v", id, err)
	}
}

// recordFailure counts a receive error and backs off before the next attempt.
func (c *Consumer) recordFailure(ctx context.Context, err error) {
	fails := c.consecutiveFails.Add(1)
	logger.Error("Queue consumer: receive error (consecutive: %d): %v — retrying in %s",
		fails, err, c.cfg.ReceiveBackoff)

	if fails >= maxConsecutiveFailures {
		c.healthy.Store(false)
	}

	select {
	case <-ctx.Done():
	case <-time.After(c.cfg.ReceiveBackoff):
	}
}

// recordSuccess resets the failure counter after any successful receive.
func (c *Consumer) recordSuccess() {
	if c.consecutiveFails.Load() > 0 {
		c.consecutiveFails.Store(0)
	}
	if !c.healthy.Load() {
		c.healthy.Store(true)
	}
}
