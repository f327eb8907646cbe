package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/collabroom/relay/internal/common/config"
	"github.com/collabroom/relay/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type bridgeFixture struct {
	registry *Registry
	bus      *MemoryBus
	bridge   *Bridge
	cancel   context.CancelFunc
}

func newBridgeFixture(t *testing.T, relayCfg config.RelayConfig) *bridgeFixture {
	t.Helper()
	config.SetRelayDefaults(&relayCfg)

	logger := zap.NewNop()
	m := metrics.New(config.MetricsConfig{})
	registry := NewRegistry(logger)
	broadcaster := NewBroadcaster(logger, registry, m)
	bus := NewMemoryBus(logger)
	bridge := NewBridge(logger, bus, broadcaster, m, relayCfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = bridge.Run(ctx) }()

	// wait for the bridge's wildcard subscription to be registered so a
	// Publish immediately after fixture setup is not lost
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs) > 0
	}, time.Second, time.Millisecond)

	t.Cleanup(func() {
		cancel()
		_ = bus.Close()
	})
	return &bridgeFixture{registry: registry, bus: bus, bridge: bridge, cancel: cancel}
}

func waitForMessages(t *testing.T, s *fakeSender, n int) [][]byte {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.messages()) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return s.messages()
}

func TestBridgeFanOutIncludesSender(t *testing.T) {
	f := newBridgeFixture(t, config.RelayConfig{})

	a, aSender := newTestConn("a")
	b, bSender := newTestConn("b")
	f.registry.Register(a)
	f.registry.Register(b)
	f.registry.SetSession(a, "r1", "ua")
	f.registry.SetSession(b, "r1", "ub")

	env := NewEditEnvelope(json.RawMessage(`{"x":1}`), "ua")
	require.NoError(t, f.bridge.Publish(context.Background(), "r1", env, a.ID))

	// echo-to-sender: A receives its own edit, alongside B
	for _, s := range []*fakeSender{aSender, bSender} {
		msgs := waitForMessages(t, s, 1)
		var got map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(msgs[0], &got))
		assert.JSONEq(t, `"edit"`, string(got["type"]))
		assert.JSONEq(t, `{"x":1}`, string(got["data"]))
		assert.JSONEq(t, `"ua"`, string(got["userId"]))
		assert.Contains(t, got, "timestamp")
		assert.NotContains(t, got, "origin")
	}
}

func TestBridgeExcludeSender(t *testing.T) {
	f := newBridgeFixture(t, config.RelayConfig{ExcludeSender: true})

	a, aSender := newTestConn("a")
	b, bSender := newTestConn("b")
	f.registry.Register(a)
	f.registry.Register(b)
	f.registry.SetSession(a, "r1", "ua")
	f.registry.SetSession(b, "r1", "ub")

	env := NewCursorEnvelope(json.RawMessage(`{"pos":3}`), "ua")
	require.NoError(t, f.bridge.Publish(context.Background(), "r1", env, a.ID))

	waitForMessages(t, bSender, 1)
	assert.Empty(t, aSender.messages())
}

func TestBridgeSessionIsolation(t *testing.T) {
	f := newBridgeFixture(t, config.RelayConfig{})

	a, aSender := newTestConn("a")
	b, bSender := newTestConn("b")
	f.registry.Register(a)
	f.registry.Register(b)
	f.registry.SetSession(a, "r1", "ua")
	f.registry.SetSession(b, "r2", "ub")

	env := NewEditEnvelope(json.RawMessage(`1`), "ua")
	require.NoError(t, f.bridge.Publish(context.Background(), "r1", env, a.ID))

	waitForMessages(t, aSender, 1)
	assert.Empty(t, bSender.messages())
}

func TestBridgeCursorEnvelopeOnWireHasNoTimestamp(t *testing.T) {
	f := newBridgeFixture(t, config.RelayConfig{})

	a, aSender := newTestConn("a")
	f.registry.Register(a)
	f.registry.SetSession(a, "r1", "guest-7")

	env := NewCursorEnvelope(json.RawMessage(`{"pos":9}`), "guest-7")
	require.NoError(t, f.bridge.Publish(context.Background(), "r1", env, a.ID))

	msgs := waitForMessages(t, aSender, 1)
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.JSONEq(t, `"cursor"`, string(got["type"]))
	assert.NotContains(t, got, "timestamp")
}

func TestBridgeDropsMalformedBusPayload(t *testing.T) {
	f := newBridgeFixture(t, config.RelayConfig{})

	a, aSender := newTestConn("a")
	f.registry.Register(a)
	f.registry.SetSession(a, "r1", "ua")

	require.NoError(t, f.bus.Publish(context.Background(), "room:r1:changes", []byte("not json")))
	require.NoError(t, f.bus.Publish(context.Background(), "room:r1:changes", mustMarshal(t, busEnvelope{Envelope: NewEditEnvelope(json.RawMessage(`1`), "u")})))

	// only the valid envelope arrives
	msgs := waitForMessages(t, aSender, 1)
	assert.Len(t, msgs, 1)
}

func TestBridgePublishAfterBusCloseReturnsError(t *testing.T) {
	f := newBridgeFixture(t, config.RelayConfig{})
	require.NoError(t, f.bus.Close())

	env := NewEditEnvelope(json.RawMessage(`1`), "u")
	assert.Error(t, f.bridge.Publish(context.Background(), "r1", env, "c"))
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
