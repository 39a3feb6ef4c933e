// Package cache is a thin JSON cache over Redis. A nil *Cache or one built
// without an address is disabled: reads miss and writes are dropped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/metrics"
)

const keyPrefix = "alerthub:"

type Cache struct {
	rc  *redis.Client
	log *logger.Logger
}

// Open returns a cache backed by Redis at addr. An empty addr yields a
// disabled cache.
func Open(addr, password string, db int, log *logger.Logger) *Cache {
	log = logger.OrNop(log)
	if addr == "" {
		log.Info("redis disabled")
		return &Cache{log: log}
	}
	return &Cache{
		rc:  redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		log: log,
	}
}

// New wraps an existing client.
func New(rc *redis.Client, log *logger.Logger) *Cache {
	return &Cache{rc: rc, log: logger.OrNop(log)}
}

func (c *Cache) Enabled() bool { return c != nil && c.rc != nil }

// Ping checks connectivity; a disabled cache always succeeds.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rc.Ping(ctx).Err()
}

// Key joins parts under the application prefix.
func Key(namespace string, parts ...string) string {
	return keyPrefix + namespace + ":" + strings.Join(parts, ":")
}

// GetJSON decodes the value at key into v. It reports false on a miss, on a
// disabled cache and on any Redis or decode error.
func (c *Cache) GetJSON(ctx context.Context, namespace, key string, v interface{}) bool {
	if !c.Enabled() {
		return false
	}
	s, err := c.rc.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", "key", key, "err", err)
		}
		metrics.CacheMissesTotal.WithLabelValues(namespace).Inc()
		return false
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		c.log.Warn("cache entry undecodable", "key", key, "err", err)
		metrics.CacheMissesTotal.WithLabelValues(namespace).Inc()
		return false
	}
	metrics.CacheHitsTotal.WithLabelValues(namespace).Inc()
	return true
}

// SetJSON stores v at key for ttl. Failures are logged, never returned.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "err", err)
	}
}

// Invalidate removes every key under namespace.
func (c *Cache) Invalidate(ctx context.Context, namespace string) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.rc.Scan(ctx, 0, keyPrefix+namespace+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", namespace, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rc.Del(ctx, keys...).Err()
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rc.Close()
}
