package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/jpillora/backoff"

	"chat-relay/internal/models"
)

// Deliverer receives events read from the shared channel.
type Deliverer interface {
	Deliver(ev models.FanoutEvent)
}

// SubscribeToEvents feeds every event on the shared channel to the hub until
// ctx is cancelled, resubscribing with backoff when the subscription drops.
func SubscribeToEvents(ctx context.Context, client *Client, hub Deliverer) {
	boff := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		err := subscribeOnce(ctx, client, hub, boff)
		if ctx.Err() != nil {
			slog.Info("[REDIS] Subscription stopped")
			return
		}

		wait := boff.Duration()
		slog.Error("[REDIS] Subscription lost, retrying", "error", err, "retryIn", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func subscribeOnce(ctx context.Context, client *Client, hub Deliverer, boff *backoff.Backoff) error {
	pubsub := client.rdb.Subscribe(ctx, client.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscription confirmation: %w", err)
	}

	slog.Info("[REDIS] Subscribed, listening for events", "channel", client.channel)
	boff.Reset()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pub/sub channel closed")
			}

			event, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				slog.Error("[REDIS] Error decoding event", "channel", msg.Channel, "error", err)
				continue
			}

			hub.Deliver(event)
		}
	}
}

func decodeEvent(payload []byte) (models.FanoutEvent, error) {
	var event models.FanoutEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, err
	}
	if event.Event == "" {
		return event, errors.New("event name missing")
	}
	return event, nil
}
