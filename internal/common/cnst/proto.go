package cnst

// MessageType is the discriminator of inbound client messages.
type MessageType string

const (
	MessageTypeJoin   MessageType = "join"
	MessageTypeEdit   MessageType = "edit"
	MessageTypeCursor MessageType = "cursor"
)

func (m MessageType) String() string {
	return string(m)
}

const (
	// BusTypeMemory is the in-process bus, for single-instance deployments
	BusTypeMemory = "memory"
	// BusTypeRedis is the Redis pub/sub bus
	BusTypeRedis = "redis"
)

const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
)
