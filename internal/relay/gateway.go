package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/collabroom/relay/internal/common/cnst"
	"github.com/collabroom/relay/internal/common/config"
	"github.com/collabroom/relay/pkg/metrics"
	"github.com/collabroom/relay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway accepts websocket connections and dispatches inbound messages:
// join mutates the registry, edit/cursor publish through the bridge. Nothing
// a client sends can take the connection down except closing the transport.
type Gateway struct {
	logger   *zap.Logger
	registry *Registry
	bridge   *Bridge
	metrics  *metrics.Metrics
	cfg      config.RelayConfig
	upgrader websocket.Upgrader
}

// NewGateway creates a gateway over the given registry and bridge.
func NewGateway(logger *zap.Logger, registry *Registry, bridge *Bridge, m *metrics.Metrics, cfg config.RelayConfig) *Gateway {
	return &Gateway{
		logger:   logger.Named("gateway"),
		registry: registry,
		bridge:   bridge,
		metrics:  m,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The realtime channel is unauthenticated by design; origin
				// checking belongs to the fronting proxy.
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// HandleWS upgrades the request and runs the connection's read loop until
// the transport closes.
func (g *Gateway) HandleWS(c *gin.Context) {
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	sender := &wsSender{ws: ws, timeout: g.cfg.SendTimeout}
	conn := NewConn(uuid.NewString(), sender)

	g.registry.Register(conn)
	g.metrics.ConnOpened()
	g.logger.Info("client connected", zap.String("conn", conn.ID))

	done := make(chan struct{})
	defer func() {
		close(done)
		g.registry.Remove(conn)
		g.metrics.ConnClosed()
		_ = sender.Close()
		g.logger.Info("client disconnected", zap.String("conn", conn.ID))
	}()

	_ = ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})
	go g.keepalive(sender, conn.ID, done)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Warn("read error", zap.String("conn", conn.ID), zap.Error(err))
			}
			return
		}
		g.dispatch(c.Request.Context(), conn, data)
	}
}

// dispatch handles one inbound message. Malformed or unknown messages are
// logged and ignored; the connection stays open.
func (g *Gateway) dispatch(ctx context.Context, conn *Conn, data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		g.metrics.MessageReceived("malformed")
		g.logger.Warn("malformed message",
			zap.String("conn", conn.ID),
			zap.Error(err))
		return
	}

	switch cnst.MessageType(msg.Type) {
	case cnst.MessageTypeJoin:
		g.handleJoin(conn, msg)
	case cnst.MessageTypeEdit:
		g.metrics.MessageReceived("edit")
		g.relay(ctx, conn, msg, true)
	case cnst.MessageTypeCursor:
		g.metrics.MessageReceived("cursor")
		g.relay(ctx, conn, msg, false)
	default:
		g.metrics.MessageReceived("unknown")
		g.logger.Warn("unknown message type",
			zap.String("conn", conn.ID),
			zap.String("type", msg.Type))
	}
}

func (g *Gateway) handleJoin(conn *Conn, msg Inbound) {
	g.metrics.MessageReceived("join")
	if msg.RoomID == "" {
		g.logger.Warn("join without roomId", zap.String("conn", conn.ID))
		return
	}

	// userId wins over guestToken when both are present; either is accepted
	// verbatim, the channel does not verify identity.
	identity := utils.FirstNonEmpty(msg.UserID, msg.GuestToken)
	g.registry.SetSession(conn, msg.RoomID, identity)
	g.logger.Info("client joined room",
		zap.String("conn", conn.ID),
		zap.String("room", msg.RoomID),
		zap.String("identity", identity))
}

// relay publishes an edit or cursor envelope for the connection's current
// room. A connection that has not joined produces no publish at all.
func (g *Gateway) relay(ctx context.Context, conn *Conn, msg Inbound, timestamped bool) {
	roomID, identity, ok := g.registry.Session(conn)
	if !ok {
		g.logger.Debug("message from connection with no room", zap.String("conn", conn.ID))
		return
	}

	var env Envelope
	if timestamped {
		env = NewEditEnvelope(msg.Data, identity)
	} else {
		env = NewCursorEnvelope(msg.Data, identity)
	}

	if err := g.bridge.Publish(ctx, roomID, env, conn.ID); err != nil {
		// Degrade to no realtime sync; the connection stays open.
		g.logger.Error("failed to publish envelope",
			zap.String("conn", conn.ID),
			zap.String("room", roomID),
			zap.Error(err))
	}
}

// keepalive pings the client until the connection's read loop exits.
func (g *Gateway) keepalive(sender *wsSender, connID string, done <-chan struct{}) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sender.Ping(); err != nil {
				g.logger.Debug("ping failed", zap.String("conn", connID), zap.Error(err))
				return
			}
		}
	}
}

// wsSender serializes writes to one gorilla connection. gorilla allows a
// single concurrent writer, so the broadcaster, the keepalive ticker and
// the close path all go through the mutex here.
type wsSender struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

func (s *wsSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeout > 0 {
		_ = s.ws.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSender) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeout > 0 {
		_ = s.ws.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	return s.ws.WriteMessage(websocket.PingMessage, nil)
}

func (s *wsSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.Close()
}
