package relay

import (
	"context"
	"fmt"

	"github.com/collabroom/relay/internal/common/cnst"
	"github.com/collabroom/relay/internal/common/config"
	"github.com/collabroom/relay/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus implements Bus on Redis pub/sub. PUBLISH/PSUBSCRIBE give exactly
// the delivery model the relay is specified against: best-effort, unordered,
// at-most-once across processes. The client is opened once and lives for the
// process lifetime.
type RedisBus struct {
	logger *zap.Logger
	client redis.UniversalClient
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus connects to Redis based on configuration.
func NewRedisBus(logger *zap.Logger, cfg config.BusRedisConfig) (*RedisBus, error) {
	addrs := utils.SplitByMultipleDelimiters(cfg.Addr, ";", ",")
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = cfg.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBus{
		logger: logger.Named("bus.redis"),
		client: client,
	}, nil
}

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

// PSubscribe implements Bus.PSubscribe. go-redis holds a dedicated
// connection for the subscription, separate from the publishing connection.
func (b *RedisBus) PSubscribe(ctx context.Context, pattern string) (<-chan *BusMessage, error) {
	pubsub := b.client.PSubscribe(ctx, pattern)

	// Force the subscription onto the wire before returning, so a publish
	// issued right after cannot be missed on a fresh process.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to pattern %q: %w", pattern, err)
	}

	ch := make(chan *BusMessage, 100)
	go func() {
		defer close(ch)
		defer func() { _ = pubsub.Close() }()

		src := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case ch <- &BusMessage{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Ping implements Bus.Ping.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close implements Bus.Close.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
