package goalsync

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisFanout bridges a local bus to a Redis pub/sub channel so goal updates
// reach subscribers on every instance, not just the one that handled the
// write.
type RedisFanout[V any] struct {
	client  redis.UniversalClient
	channel string
	bus     *Bus[V]
	log     *slog.Logger
}

// NewRedisFanout wires a bus to a Redis channel.
func NewRedisFanout[V any](client redis.UniversalClient, channel string, bus *Bus[V], log *slog.Logger) *RedisFanout[V] {
	return &RedisFanout[V]{
		client:  client,
		channel: channel,
		bus:     bus,
		log:     log,
	}
}

// Publish sends v to the Redis channel. Local delivery happens when the
// message loops back through Run, so every instance, publisher included,
// observes the same ordering.
func (f *RedisFanout[V]) Publish(ctx context.Context, v V) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, data).Err()
}

// Run subscribes to the Redis channel and republishes incoming values on the
// local bus until ctx is canceled. Malformed messages are logged and skipped;
// one bad publisher must not wedge goal delivery for everyone.
func (f *RedisFanout[V]) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var v V
			if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
				f.log.WarnContext(ctx, "goalsync: dropping malformed message",
					slog.String("channel", f.channel),
					slog.Any("error", err),
				)
				continue
			}
			f.bus.Publish(v)
		}
	}
}
