package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

// CachePut encodes value with the configured codec and stores it under key.
// ttl == 0 selects Cache.DefaultTTL; a negative ttl is rejected.
func (e *Engine) CachePut(ctx context.Context, key string, value any, ttl time.Duration) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if key == "" {
		return ErrInvalidCacheKey
	}
	if ttl == 0 {
		ttl = e.config.Cache.DefaultTTL
	}
	if ttl < 0 {
		return ErrInvalidTTL
	}

	data, err := e.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return e.writeFailed("cache_put", e.store.Put(ctx, e.cacheKey(key), data, ttl))
}

// CacheGet decodes the entry for key into out and reports whether it was
// found. An expired entry is a miss. Under fail-open a backend error is a
// miss as well.
func (e *Engine) CacheGet(ctx context.Context, key string, out any) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	if key == "" {
		return false, ErrInvalidCacheKey
	}

	raw, err := e.store.Get(ctx, e.cacheKey(key))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			e.metricInc(MetricCacheMiss)
			return false, nil
		}
		if err := e.degrade("cache_get", err); err != nil {
			return false, err
		}
		e.metricInc(MetricCacheMiss)
		return false, nil
	}

	if err := e.codec.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	e.metricInc(MetricCacheHit)
	return true, nil
}

// CacheDelete removes the entry for key. Deleting an absent entry succeeds.
func (e *Engine) CacheDelete(ctx context.Context, key string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if key == "" {
		return ErrInvalidCacheKey
	}
	return e.writeFailed("cache_delete", e.store.Delete(ctx, e.cacheKey(key)))
}

// InvalidatePrefix removes every cache entry whose key starts with prefix
// and returns how many live entries were removed. An empty prefix clears
// the whole cache category. Other categories are never touched.
func (e *Engine) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.store.DeletePrefix(ctx, e.keys.CategoryPrefix(kv.CategoryCache)+prefix)
	if err != nil {
		return n, e.writeFailed("invalidate_prefix", err)
	}
	return n, nil
}

func (e *Engine) cacheKey(key string) string {
	return e.keys.Key(kv.CategoryCache, key)
}
