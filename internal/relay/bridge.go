package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/collabroom/relay/internal/common/config"
	"github.com/collabroom/relay/pkg/metrics"
	"go.uber.org/zap"
)

// Bridge connects the local fan-out to the shared bus. Every envelope goes
// out through Publish — even when all peers are on this process — so that
// local and remote delivery share one path; the process receives its own
// publishes back through the wildcard subscription.
type Bridge struct {
	logger        *zap.Logger
	bus           Bus
	codec         TopicCodec
	broadcaster   *Broadcaster
	metrics       *metrics.Metrics
	excludeSender bool
}

// NewBridge creates a bridge over the given bus and broadcaster.
func NewBridge(logger *zap.Logger, bus Bus, broadcaster *Broadcaster, m *metrics.Metrics, cfg config.RelayConfig) *Bridge {
	return &Bridge{
		logger:        logger.Named("bridge"),
		bus:           bus,
		codec:         TopicCodec{Prefix: cfg.TopicPrefix, Suffix: cfg.TopicSuffix},
		broadcaster:   broadcaster,
		metrics:       m,
		excludeSender: cfg.ExcludeSender,
	}
}

// Publish serializes an envelope and publishes it to the room's topic.
// origin is the originating connection id, carried on the bus wire for
// sender exclusion.
func (b *Bridge) Publish(ctx context.Context, roomID string, env Envelope, origin string) error {
	payload, err := json.Marshal(busEnvelope{Origin: origin, Envelope: env})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := b.bus.Publish(ctx, b.codec.Topic(roomID), payload); err != nil {
		b.metrics.PublishResult("error")
		return err
	}
	b.metrics.PublishResult("ok")
	return nil
}

// Run subscribes to the wildcard pattern and fans every received envelope
// out to this process's connections. It blocks until the context is
// cancelled or the bus closes the subscription.
func (b *Bridge) Run(ctx context.Context) error {
	ch, err := b.bus.PSubscribe(ctx, b.codec.Pattern())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", b.codec.Pattern(), err)
	}

	b.logger.Info("bridge subscribed", zap.String("pattern", b.codec.Pattern()))
	for msg := range ch {
		b.handle(msg)
	}
	return nil
}

func (b *Bridge) handle(msg *BusMessage) {
	roomID, ok := b.codec.RoomID(msg.Topic)
	if !ok {
		b.logger.Warn("received message on unexpected topic", zap.String("topic", msg.Topic))
		return
	}

	var wrapped busEnvelope
	if err := json.Unmarshal(msg.Payload, &wrapped); err != nil {
		b.logger.Error("failed to unmarshal bus envelope",
			zap.String("topic", msg.Topic),
			zap.Error(err))
		return
	}

	payload, err := json.Marshal(wrapped.Envelope)
	if err != nil {
		b.logger.Error("failed to marshal client envelope", zap.Error(err))
		return
	}

	skip := ""
	if b.excludeSender {
		skip = wrapped.Origin
	}
	b.broadcaster.Deliver(roomID, payload, skip)
}
