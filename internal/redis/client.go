package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"chat-relay/internal/models"
)

const DefaultChannel = "chat:events"

// Client publishes fan-out events on a Redis channel shared by every relay
// instance.
type Client struct {
	rdb     *redis.Client
	channel string
}

func NewClient(ctx context.Context, redisURL, channel string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if channel == "" {
		channel = DefaultChannel
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	slog.Info("[REDIS] Connected to Redis", "addr", opt.Addr, "channel", channel)

	return &Client{
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Channel() string {
	return c.channel
}

// Publish implements hub.Publisher.
func (c *Client) Publish(ctx context.Context, event models.FanoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("[REDIS] Failed to marshal event", "event", event.Event, "error", err)
		return err
	}

	if err := c.rdb.Publish(ctx, c.channel, payload).Err(); err != nil {
		slog.Error("[REDIS] Failed to publish event", "event", event.Event, "channel", c.channel, "error", err)
		return err
	}

	return nil
}
