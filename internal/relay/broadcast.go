package relay

import (
	"github.com/collabroom/relay/pkg/metrics"
	"go.uber.org/zap"
)

// Broadcaster fans a serialized envelope out to every local connection in a
// room. It only reads the Registry; removal of dead connections happens in
// the transport's own close path, never here.
type Broadcaster struct {
	logger   *zap.Logger
	registry *Registry
	metrics  *metrics.Metrics
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(logger *zap.Logger, registry *Registry, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		logger:   logger.Named("broadcast"),
		registry: registry,
		metrics:  m,
	}
}

// Deliver sends payload to every connection in the room. skipConnID, when
// non-empty, names one connection to leave out (sender exclusion). A failed
// send skips that recipient and continues; no retry.
func (b *Broadcaster) Deliver(roomID string, payload []byte, skipConnID string) {
	conns := b.registry.ConnectionsFor(roomID)
	b.metrics.FanoutObserved(len(conns))

	for _, c := range conns {
		if skipConnID != "" && c.ID == skipConnID {
			b.metrics.Delivery("skipped")
			continue
		}
		if err := c.Send(payload); err != nil {
			b.metrics.Delivery("failed")
			b.logger.Warn("failed to deliver to connection",
				zap.String("conn", c.ID),
				zap.String("room", roomID),
				zap.Error(err))
			continue
		}
		b.metrics.Delivery("sent")
	}
}
