package messaging

import (
	"context"
)

// Broker publishes engagement events to interested consumers. The
// tracking path treats publication as fire-and-forget: a failed publish
// is logged, never surfaced.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
