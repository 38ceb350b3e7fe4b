package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TicketEventsChannel is the pub/sub channel carrying ticket lifecycle events.
const TicketEventsChannel = "modmail:events"

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// UserChannel is the per-user channel for ticket events, so dashboards can
// follow a single user.
func UserChannel(userID string) string {
	return fmt.Sprintf("%s:%s", TicketEventsChannel, userID)
}
