package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Sink is the push channel a freshly committed notification is handed to.
// Push is best-effort: the service logs failures and moves on, so a sink must
// never be required for correctness.
type Sink interface {
	Push(ctx context.Context, n *Notification) error
}

// RedisSink publishes notifications to a per-recipient Redis channel, where
// connected gateways pick them up and fan out to clients.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink creates a sink backed by the given Redis client
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// ChannelFor returns the pub/sub channel name for a recipient
func ChannelFor(recipientID int64) string {
	return fmt.Sprintf("user:%d:notifications", recipientID)
}

// Push publishes the JSON-encoded notification to the recipient's channel
func (s *RedisSink) Push(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := s.client.Publish(ctx, ChannelFor(n.RecipientID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// NopSink discards pushes. Used when no push transport is configured.
type NopSink struct{}

// Push implements Sink
func (NopSink) Push(context.Context, *Notification) error { return nil }
