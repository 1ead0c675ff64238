// Package cache is a small read-through TTL cache for provider responses.
// Concurrent misses on the same key share one fetch, which is not cancelled
// when one of its callers goes away.
package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	utilcache "k8s.io/apimachinery/pkg/util/cache"
	"k8s.io/utils/clock"
)

type Cache struct {
	entries *utilcache.Expiring
	group   singleflight.Group
}

func New(clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Cache{entries: utilcache.NewExpiringWithClock(clk)}
}

// Get returns the cached value for key, or calls fetch and stores its result
// for ttl. Errors are never cached. A ttl <= 0 disables caching.
func Get[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if ttl > 0 {
		if v, ok := c.entries.Get(key); ok {
			if t, ok := v.(T); ok {
				return t, true, nil
			}
		}
	}

	// The shared fetch outlives any single caller; each caller waits on its
	// own ctx.
	ch := c.group.DoChan(key, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cache: fetch for %q panicked: %v", key, r)
			}
		}()
		res, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			c.entries.Set(key, res, ttl)
		}
		return res, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, false, res.Err
	}
	v := res.Val
	t, ok := v.(T)
	if !ok {
		return zero, false, fmt.Errorf("cache: key %q holds %T", key, v)
	}
	return t, false, nil
}

// Invalidate drops key.
func (c *Cache) Invalidate(key string) { c.entries.Delete(key) }

func (c *Cache) Len() int { return c.entries.Len() }
