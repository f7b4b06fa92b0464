package core

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Cache is a string keyed, TTL bound in-memory cache.
// Concurrent GetOrLoad calls for the same key share a single load.
type Cache[V any] struct {
	store *ristretto.Cache[string, V]
	ttl   time.Duration
	group singleflight.Group
}

// NewCache creates a Cache holding at most maxEntries values for ttl each.
func NewCache[V any](maxEntries int64, ttl time.Duration) (*Cache[V], error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating cache")
	}
	return &Cache[V]{store: store, ttl: ttl}, nil
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Set stores val under key; the value is visible to Get once Set returns.
func (c *Cache[V]) Set(key string, val V) {
	c.store.SetWithTTL(key, val, 1, c.ttl)
	c.store.Wait()
}

func (c *Cache[V]) Delete(key string) {
	c.store.Del(key)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.store.Clear()
}

func (c *Cache[V]) Close() {
	c.store.Close()
}

// GetOrLoad returns the cached value for key or calls load, caching its result when it succeeds.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if val, ok := c.Get(key); ok {
		return val, nil
	}
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		val, err := load(ctx)
		if err != nil {
			return val, err
		}
		c.Set(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}
