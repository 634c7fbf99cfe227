package events

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/Morgiver/invitation-core/internal/domain"
)

// RedisForwarder publishes bus events on a pub/sub channel. Delivery is
// fire-and-forget: subscribers that are not connected miss the event.
type RedisForwarder struct {
	client  *redis.Client
	channel string
}

func NewRedisForwarder(client *redis.Client, channel string) *RedisForwarder {
	return &RedisForwarder{client: client, channel: channel}
}

func (f *RedisForwarder) Handle(ctx context.Context, event domain.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event.Kind(), f.channel, err)
	}
	return nil
}
