package relay

import (
	"context"
)

// BusMessage is one delivery from a wildcard subscription.
type BusMessage struct {
	Topic   string
	Payload []byte
}

// Bus is the cross-process fan-out substrate. Delivery between processes is
// best-effort, unordered and at-most-once; nothing here may assume more.
type Bus interface {
	// Publish sends payload to every subscriber whose pattern matches topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// PSubscribe subscribes to a wildcard pattern and returns the delivery
	// channel. The channel closes when the context is cancelled or the bus
	// is closed.
	PSubscribe(ctx context.Context, pattern string) (<-chan *BusMessage, error)

	// Ping reports whether the bus is reachable.
	Ping(ctx context.Context) error

	Close() error
}
