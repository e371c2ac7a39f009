package repo

import (
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultPrefix namespaces every key this process writes.
const DefaultPrefix = "chansync:"

type Repository struct {
	log    *zap.Logger
	client *RedisClient

	Channels   *ChannelRepository
	Properties *PropertyRepository
	History    *HistoryRepository
}

// NewRepository builds the repositories over rdb. prefix defaults to
// DefaultPrefix; tests pass a unique one.
func NewRepository(log *zap.Logger, rdb *redis.Client, prefix string) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("repo")
	client := NewRedisClient(log, rdb)
	k := newKeys(prefix)

	return &Repository{
		log,
		client,
		newChannelRepository(log, client, k),
		newPropertyRepository(log, client, k),
		newHistoryRepository(log, client, k),
	}
}

// Client exposes the underlying client for health checks.
func (r *Repository) Client() *RedisClient { return r.client }

// keys builds every Redis key under one prefix.
type keys struct {
	prefix string
}

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return keys{prefix: prefix}
}

func (k keys) channel(id string) string           { return k.prefix + "channel:" + id }
func (k keys) channelIDs() string                 { return k.prefix + "channels" } // SET of channel ids
func (k keys) propertyChannels(pid string) string { return k.prefix + "property:" + pid + ":channels" }
func (k keys) property(pid string) string         { return k.prefix + "property:" + pid }
func (k keys) propertyIDs() string                { return k.prefix + "properties" } // SET of property ids
func (k keys) rooms(pid string) string            { return k.prefix + "property:" + pid + ":rooms" }
func (k keys) availability(pid, roomID string) string {
	return k.prefix + "property:" + pid + ":avail:" + roomID // ZSET scored by day
}
func (k keys) history(channelID string) string { return k.prefix + "channel:" + channelID + ":history" }
