package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache stores JSON-encoded values under a namespace. Values are copied
// on the way in and out, so callers never share mutable state through it.
type Cache struct {
	store     Store
	namespace string
	group     singleflight.Group
}

func New(store Store, namespace string) *Cache {
	return &Cache{store: store, namespace: namespace}
}

func (c *Cache) key(k string) string {
	return c.namespace + ":" + k
}

func (c *Cache) Namespace() string {
	return c.namespace
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.store.Set(ctx, c.key(key), data, ttl)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(key))
}

// Get decodes the value at key into T. A miss is reported as ok=false with
// a nil error; store failures are returned.
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	data, err := c.store.Get(ctx, c.key(key))
	if errors.Is(err, ErrCacheMiss) {
		metrics.RecordCacheRead(c.namespace, false)
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		// Undecodable entries behave like misses and get overwritten.
		logger.Warn("Dropping undecodable cache entry",
			zap.String("namespace", c.namespace),
			zap.Error(err),
		)
		metrics.RecordCacheRead(c.namespace, false)
		return zero, false, nil
	}

	metrics.RecordCacheRead(c.namespace, true)
	return v, true, nil
}

// GetOrCompute returns the cached value for key or runs compute once for
// all concurrent callers of the same key. compute runs without the
// caller's cancellation and must bound itself. Only successful results are
// stored. The bool result reports whether the value came from the cache.
func GetOrCompute[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	compute func(ctx context.Context) (T, error),
) (T, bool, error) {
	var zero T

	v, ok, err := Get[T](ctx, c, key)
	if err != nil {
		logger.Warn("Cache read failed, computing",
			zap.String("namespace", c.namespace),
			zap.Error(err),
		)
	}
	if ok {
		return v, true, nil
	}

	// The computation is shared by every waiter on key, so it must outlive
	// the caller that happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		val, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if err := c.Set(shared, key, val, ttl); err != nil {
			logger.Warn("Cache write failed",
				zap.String("namespace", c.namespace),
				zap.Error(err),
			)
		}
		return val, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		val := res.Val.(T)
		if res.Shared {
			return clone(val), false, nil
		}
		return val, false, nil
	}
}

// clone deep-copies v through its JSON form so waiters sharing one
// computation each get their own value.
func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
