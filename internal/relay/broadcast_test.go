package relay

import (
	"testing"

	"github.com/collabroom/relay/internal/common/config"
	"github.com/collabroom/relay/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *Registry) {
	t.Helper()
	registry := NewRegistry(zap.NewNop())
	return NewBroadcaster(zap.NewNop(), registry, metrics.New(config.MetricsConfig{})), registry
}

func TestBroadcasterDeliversToAllRoomMembers(t *testing.T) {
	b, registry := newTestBroadcaster(t)

	a, aSender := newTestConn("a")
	bb, bSender := newTestConn("b")
	other, otherSender := newTestConn("other")
	for _, conn := range []*Conn{a, bb, other} {
		registry.Register(conn)
	}
	registry.SetSession(a, "r1", "ua")
	registry.SetSession(bb, "r1", "ub")
	registry.SetSession(other, "r2", "uo")

	b.Deliver("r1", []byte(`{"type":"edit"}`), "")

	assert.Len(t, aSender.messages(), 1)
	assert.Len(t, bSender.messages(), 1)
	assert.Empty(t, otherSender.messages())
	assert.Equal(t, `{"type":"edit"}`, string(aSender.messages()[0]))
}

func TestBroadcasterSkipsFailedRecipientAndContinues(t *testing.T) {
	b, registry := newTestBroadcaster(t)

	dead, deadSender := newTestConn("dead")
	live, liveSender := newTestConn("live")
	registry.Register(dead)
	registry.Register(live)
	registry.SetSession(dead, "r1", "ud")
	registry.SetSession(live, "r1", "ul")
	deadSender.failed = true

	b.Deliver("r1", []byte("x"), "")

	assert.Empty(t, deadSender.sent)
	assert.Len(t, liveSender.messages(), 1)
	// delivery failure must not unregister; removal is the transport's job
	assert.Len(t, registry.ConnectionsFor("r1"), 2)
}

func TestBroadcasterSenderExclusion(t *testing.T) {
	b, registry := newTestBroadcaster(t)

	a, aSender := newTestConn("a")
	bb, bSender := newTestConn("b")
	registry.Register(a)
	registry.Register(bb)
	registry.SetSession(a, "r1", "ua")
	registry.SetSession(bb, "r1", "ub")

	b.Deliver("r1", []byte("x"), "a")

	assert.Empty(t, aSender.messages())
	assert.Len(t, bSender.messages(), 1)
}

func TestBroadcasterEmptyRoomIsNoop(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	b.Deliver("empty", []byte("x"), "")
}

func TestBroadcasterDoesNotDeliverToRemovedConnection(t *testing.T) {
	b, registry := newTestBroadcaster(t)

	gone, goneSender := newTestConn("gone")
	stay, staySender := newTestConn("stay")
	registry.Register(gone)
	registry.Register(stay)
	registry.SetSession(gone, "r1", "ug")
	registry.SetSession(stay, "r1", "us")

	registry.Remove(gone)
	b.Deliver("r1", []byte("x"), "")

	assert.Empty(t, goneSender.messages())
	assert.Len(t, staySender.messages(), 1)
}
