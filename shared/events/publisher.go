package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen caps each stream so consumers that fell far behind
// cannot grow Redis memory without bound. Trimming is approximate.
const DefaultStreamMaxLen = 100_000

// Publisher appends ledger events to a Redis stream after their transaction
// committed. Delivery is at-least-once from the consumer group's point of view.
type Publisher struct {
	client redis.UniversalClient
	maxLen int64
	now    func() time.Time
}

func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client, maxLen: DefaultStreamMaxLen, now: time.Now}
}

// Publish wraps data in an Event envelope for userID and appends it to stream.
func (p *Publisher) Publish(ctx context.Context, stream, eventType, userID string, data any) error {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		UserID:    userID,
		Timestamp: p.now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"event": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}
