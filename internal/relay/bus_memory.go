package relay

import (
	"context"
	"strings"
	"sync"

	"github.com/collabroom/relay/internal/common/cnst"
	"go.uber.org/zap"
)

// MemoryBus implements Bus in-process, for single-instance deployments and
// tests. Pattern matching supports a single "*" wildcard, which is all the
// topic convention needs.
type MemoryBus struct {
	logger *zap.Logger
	mu     sync.RWMutex
	subs   []*memorySub
	closed bool
}

type memorySub struct {
	pattern string
	ch      chan *BusMessage
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{
		logger: logger.Named("bus.memory"),
	}
}

// Publish implements Bus.Publish. Subscribers with a full queue drop the
// message; the bus is at-most-once.
func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return cnst.ErrBusClosed
	}

	for _, sub := range b.subs {
		if !matchPattern(sub.pattern, topic) {
			continue
		}
		select {
		case sub.ch <- &BusMessage{Topic: topic, Payload: payload}:
		default:
			b.logger.Warn("subscriber queue full, dropping message",
				zap.String("topic", topic),
				zap.String("pattern", sub.pattern))
		}
	}
	return nil
}

// PSubscribe implements Bus.PSubscribe.
func (b *MemoryBus) PSubscribe(ctx context.Context, pattern string) (<-chan *BusMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, cnst.ErrBusClosed
	}

	sub := &memorySub{pattern: pattern, ch: make(chan *BusMessage, 100)}
	b.subs = append(b.subs, sub)

	go func() {
		<-ctx.Done()
		b.unsubscribe(sub)
	}()

	return sub.ch, nil
}

func (b *MemoryBus) unsubscribe(sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Ping implements Bus.Ping.
func (b *MemoryBus) Ping(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return cnst.ErrBusClosed
	}
	return nil
}

// Close implements Bus.Close.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
	return nil
}

// matchPattern matches a topic against a glob with at most one "*".
func matchPattern(pattern, topic string) bool {
	i := strings.IndexByte(pattern, '*')
	if i < 0 {
		return pattern == topic
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	return len(topic) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(topic, prefix) &&
		strings.HasSuffix(topic, suffix)
}
