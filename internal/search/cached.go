package search

import (
	"context"
	"strings"
	"time"

	"github.com/riddle015/riverhacks/internal/cache"
)

const cacheNamespace = "search"

type cached struct {
	next  Adapter
	cache *cache.Cache
	ttl   time.Duration
}

// Cached serves repeated queries from Redis for ttl. Failures are not cached.
func Cached(a Adapter, c *cache.Cache, ttl time.Duration) Adapter {
	if !c.Enabled() || ttl <= 0 {
		return a
	}
	return &cached{next: a, cache: c, ttl: ttl}
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) Fetch(ctx context.Context, query, location string) ([]Signal, error) {
	key := cache.Key(cacheNamespace, c.next.Name(), strings.ToLower(strings.TrimSpace(query)), strings.ToLower(location))
	var out []Signal
	if c.cache.GetJSON(ctx, cacheNamespace, key, &out) {
		return out, nil
	}
	out, err := c.next.Fetch(ctx, query, location)
	if err != nil {
		return nil, err
	}
	c.cache.SetJSON(ctx, key, out, c.ttl)
	return out, nil
}
