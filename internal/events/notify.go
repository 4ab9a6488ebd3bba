package events

import (
	"context"

	"github.com/careset/fhirstore/internal/txn"
)

// Publisher is the narrow interface notify.go needs from a Broadcaster,
// so callers can swap in a test double without a Redis connection.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// HubPublisher adapts a Hub to Publisher for single-instance deployments
// with no Redis channel configured: changes go straight to local
// WebSocket subscribers instead of round-tripping through pub/sub.
type HubPublisher struct {
	Hub *Hub
}

func (p HubPublisher) Publish(ctx context.Context, change Change) error {
	p.Hub.Publish(change)
	return nil
}

// Notify announces change once it is durable. Inside a live transaction
// it registers a post-commit callback (txn.PostCommit) so the
// announcement waits for the outermost commit; outside one the write has
// already committed, so it publishes immediately. It is the caller's
// bridge into this package: resource.Repository never imports events,
// avoiding an import cycle, and the handler layer wires this up around
// each repository call.
func Notify(ctx context.Context, pub Publisher, change Change) error {
	if !txn.FromContext(ctx) {
		return pub.Publish(ctx, change)
	}
	return txn.PostCommit(ctx, func() error {
		return pub.Publish(context.Background(), change)
	})
}
