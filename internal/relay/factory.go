package relay

import (
	"fmt"

	"github.com/collabroom/relay/internal/common/cnst"
	"github.com/collabroom/relay/internal/common/config"
	"go.uber.org/zap"
)

// NewBus creates a message bus based on configuration.
func NewBus(logger *zap.Logger, cfg *config.BusConfig) (Bus, error) {
	logger.Info("initializing message bus", zap.String("type", cfg.Type))
	switch cfg.Type {
	case cnst.BusTypeMemory:
		return NewMemoryBus(logger), nil
	case cnst.BusTypeRedis:
		return NewRedisBus(logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnsupportedBusType, cfg.Type)
	}
}
