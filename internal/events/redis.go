package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broadcaster fans a Change out to every fhirstore instance over a Redis
// pub/sub channel.
type Broadcaster struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

// NewBroadcaster wraps an already-connected redis.Client. It both
// publishes local changes to channel and, via Listen, relays remote
// publications into the local Hub so every instance's WebSocket
// subscribers see every instance's writes.
func NewBroadcaster(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{client: client, channel: channel, hub: hub, logger: logger}
}

// Publish announces change to every instance subscribed to the Redis
// channel, including this one; delivery to the local Hub always goes
// through Listen, so a process is never responsible for both publishing
// and locally delivering the same change.
func (b *Broadcaster) Publish(ctx context.Context, change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Listen subscribes to the Redis channel and relays every message,
// this instance's own publications included, into the local Hub until
// ctx is cancelled. Run it once per process in a background goroutine
// before the server starts accepting writes.
func (b *Broadcaster) Listen(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("failed to unmarshal broadcast change", zap.Error(err))
				continue
			}
			b.hub.Publish(change)
		}
	}
}
