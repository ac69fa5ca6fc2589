package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// eventStreamMaxLen is the approximate maximum length for the lifecycle
// stream, enforced via XADD MAXLEN ~.
const eventStreamMaxLen int64 = 10000

// EventBus implements domain.EventBus on Redis. Every lifecycle event is
// appended to a durable stream for consumers that replay history, and
// additionally published on a Pub/Sub channel per event type for live
// listeners.
//
// Key schema:
//
//	events:lifecycle        - stream of JSON-encoded events
//	events:{type}           - Pub/Sub channel per event type
type EventBus struct {
	rdb    *redis.Client
	stream string
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying(), stream: "events:lifecycle"}
}

// Publish appends the event to the lifecycle stream and notifies Pub/Sub
// subscribers of its type.
func (eb *EventBus) Publish(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", e.Type, err)
	}

	args := &redis.XAddArgs{
		Stream: eb.stream,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    e.Type,
			"payload": payload,
		},
	}
	if err := eb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", e.Type, err)
	}

	if err := eb.rdb.Publish(ctx, "events:"+e.Type, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe returns a read-only channel of events of the given type. The
// subscription is closed when the context is cancelled.
func (eb *EventBus) Subscribe(ctx context.Context, eventType string) (<-chan domain.Event, error) {
	pubsub := eb.rdb.Subscribe(ctx, "events:"+eventType)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", eventType, err)
	}

	out := make(chan domain.Event, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.EventBus = (*EventBus)(nil)
