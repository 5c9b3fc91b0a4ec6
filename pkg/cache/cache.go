// Package cache is a small JSON read-through cache over Redis, used by the
// read API to absorb repeated queries between index cycles.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/internal/metrics"
)

// Cache wraps a Redis client with JSON encoding and a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Cache. A nil client disables caching; every lookup misses.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// GetJSON looks up key and decodes it into dest. Returns false on a miss.
// Redis errors degrade to a miss so the caller falls through to the source.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c.client == nil {
		return false
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return false
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("Cache entry undecodable", zap.String("key", key), zap.Error(err))
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return false
	}

	metrics.CacheHits.WithLabelValues("hit").Inc()
	return true
}

// SetJSON stores value under key with the cache TTL. Failures are logged but
// never surfaced; the cache is advisory.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if c.client == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Cache value not serializable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
