package relay

import (
	"context"
	"net/http"

	"github.com/collabroom/relay/internal/common/config"
	"github.com/collabroom/relay/pkg/metrics"
	"github.com/collabroom/relay/pkg/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wires the relay components together: one registry, one broadcaster,
// one bus, one bridge, one gateway, constructed at process startup and
// passed by reference (no global state).
type Server struct {
	logger      *zap.Logger
	cfg         *config.RelayServerConfig
	metrics     *metrics.Metrics
	registry    *Registry
	broadcaster *Broadcaster
	bus         Bus
	bridge      *Bridge
	gateway     *Gateway
}

// NewServer builds the component graph from configuration.
func NewServer(logger *zap.Logger, cfg *config.RelayServerConfig) (*Server, error) {
	config.SetRelayDefaults(&cfg.Relay)

	m := metrics.New(cfg.Metrics)
	registry := NewRegistry(logger)
	broadcaster := NewBroadcaster(logger, registry, m)

	bus, err := NewBus(logger, &cfg.Bus)
	if err != nil {
		return nil, err
	}

	bridge := NewBridge(logger, bus, broadcaster, m, cfg.Relay)
	gateway := NewGateway(logger, registry, bridge, m, cfg.Relay)

	return &Server{
		logger:      logger.Named("server"),
		cfg:         cfg,
		metrics:     m,
		registry:    registry,
		broadcaster: broadcaster,
		bus:         bus,
		bridge:      bridge,
		gateway:     gateway,
	}, nil
}

// Start runs the bridge's wildcard subscription until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.bridge.Run(ctx); err != nil {
			// No realtime sync without the bus, but the process stays up.
			s.logger.Error("bridge stopped", zap.Error(err))
		}
	}()
}

// RegisterRoutes registers the relay's HTTP surface.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws", s.gateway.HandleWS)
	router.GET("/healthz", s.handleHealthz)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version.Get()})
	})
	if s.cfg.Metrics.Enabled {
		router.GET("/metrics", s.metrics.HTTPHandler())
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	if err := s.bus.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"bus":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.registry.Len(),
	})
}

// Shutdown closes the bus. Client connections terminate with the HTTP
// server that carries them.
func (s *Server) Shutdown(_ context.Context) error {
	return s.bus.Close()
}
