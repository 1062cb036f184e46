package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSender pushes JSON-encoded messages onto a Redis list drained by a
// mail relay.
type RedisSender struct {
	client redis.Cmdable
	queue  string
}

// NewRedisSender builds a RedisSender.
func NewRedisSender(client redis.Cmdable, queue string) *RedisSender {
	return &RedisSender{client: client, queue: queue}
}

func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, s.queue, string(raw)).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", s.queue, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisSender) Close() error { return nil }
