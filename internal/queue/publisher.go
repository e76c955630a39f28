/**
 * @description
 * Price-update publisher.
 * Appends batch payloads to the price-update stream. Production batches come
 * from the external price publisher; this side is used by the feed simulator
 * and the test suite.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/investorcenter/notification-service/internal/models"
	"github.com/redis/go-redis/v9"
)

// publisherMaxLen caps the stream so an offline consumer can't grow it
// without bound. Approximate trimming keeps XADD cheap.
const publisherMaxLen = 10000

// Publisher appends price-update batches to the stream the consumer reads.
type Publisher struct {
	rdb    *redis.Client
	stream string
}

// NewPublisher creates a publisher for the given stream.
func NewPublisher(rdb *redis.Client, stream string) *Publisher {
	return &Publisher{rdb: rdb, stream: stream}
}

// Publish marshals the batch and appends it as a raw (unwrapped) message.
func (p *Publisher) Publish(ctx context.Context, batch *models.PriceUpdateBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal price batch: %w", err)
	}
	return p.PublishRaw(ctx, data)
}

// PublishRaw appends an already-encoded message body.
func (p *Publisher) PublishRaw(ctx context.Context, body []byte) error {
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: publisherMaxLen,
		Approx: true,
		Values: map[string]interface{}{bodyField: string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.stream, err)
	}
	return nil
}
