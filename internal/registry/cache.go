// internal/registry/cache.go
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"

	"github.com/redis/go-redis/v9"
)

// Cache is a non-authoritative read-through cache of descriptors by id.
// Implementations swallow their own failures; a miss is always safe.
type Cache interface {
	Get(ctx context.Context, id string) (models.BackendDescriptor, bool)
	Set(ctx context.Context, d models.BackendDescriptor)
	Delete(ctx context.Context, id string)
}

// RedisCache stores descriptors as JSON under prefix+id with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "registry-cache"}),
	}
}

func (c *RedisCache) key(id string) string {
	return c.prefix + id
}

func (c *RedisCache) Get(ctx context.Context, id string) (models.BackendDescriptor, bool) {
	val, err := c.client.Get(ctx, c.key(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{"id": id, "error": err.Error()})
		}
		return models.BackendDescriptor{}, false
	}

	var d models.BackendDescriptor
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		c.logger.Warn("cache entry corrupt", map[string]interface{}{"id": id, "error": err.Error()})
		c.Delete(ctx, id)
		return models.BackendDescriptor{}, false
	}
	return d, true
}

func (c *RedisCache) Set(ctx context.Context, d models.BackendDescriptor) {
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Warn("cache encode failed", map[string]interface{}{"id": d.ID, "error": err.Error()})
		return
	}
	if err := c.client.Set(ctx, c.key(d.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"id": d.ID, "error": err.Error()})
	}
}

func (c *RedisCache) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("cache delete failed", map[string]interface{}{"id": id, "error": err.Error()})
	}
}

// NoopCache never holds anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (models.BackendDescriptor, bool) {
	return models.BackendDescriptor{}, false
}
func (NoopCache) Set(context.Context, models.BackendDescriptor) {}
func (NoopCache) Delete(context.Context, string)                {}
