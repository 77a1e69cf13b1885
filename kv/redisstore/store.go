// Package redisstore implements kv.Store on Redis.
//
// Expiry is native: every write carries a PX/EX deadline and Redis evicts on
// its own, so the client keeps no eviction state. Fixed-window counting runs
// as one Lua script so concurrent callers sharing a counter never race
// between read and increment.
//
// Each call is bounded by the configured operation timeout and is never
// retried; a timed-out call surfaces as kv.ErrUnavailable.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/kv"
	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds a single Redis round trip.
const DefaultOpTimeout = 500 * time.Millisecond

const scanBatch = 500

// KEYS[1] counter key; ARGV[1] limit; ARGV[2] window in ms.
// Returns {count, pttl_ms, allowed}.
const incrWindowScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call("GET", KEYS[1])
if not current then
  redis.call("SET", KEYS[1], 1, "PX", window)
  if limit >= 1 then
    return {1, window, 1}
  end
  return {1, window, 0}
end

local count = tonumber(current)
if not count then
  return redis.error_reply("ERR value is not an integer")
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], window)
  ttl = window
end

if count >= limit then
  return {count, ttl, 0}
end

count = redis.call("INCR", KEYS[1])
return {count, ttl, 1}
`

var incrWindowLua = redis.NewScript(incrWindowScript)

// Store is a Redis-backed kv.Store.
type Store struct {
	redis     redis.UniversalClient
	opTimeout time.Duration
}

var _ kv.Store = (*Store)(nil)

// New wraps client. opTimeout <= 0 selects DefaultOpTimeout.
func New(client redis.UniversalClient, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Store{redis: client, opTimeout: opTimeout}
}

// Client returns the underlying client.
func (s *Store) Client() redis.UniversalClient { return s.redis }

// Name implements kv.Store.
func (s *Store) Name() string { return "redis" }

// Put implements kv.Store.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return kv.ErrInvalidTTL
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return data, nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Extend implements kv.Store.
func (s *Store) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, kv.ErrInvalidTTL
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	ok, err := s.redis.PExpire(ctx, key, ttl).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// Exists implements kv.Store.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// TTL implements kv.Store.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	// -2: missing. -1: no expiry, which this package never writes.
	if ttl < 0 {
		if ttl == -1 {
			return 0, fmt.Errorf("%w: key %q has no expiry", kv.ErrUnavailable, key)
		}
		return 0, kv.ErrNotFound
	}
	return ttl, nil
}

// IncrWindow implements kv.Store as one server-side script execution.
func (s *Store) IncrWindow(ctx context.Context, key string, limit int64, window time.Duration) (kv.Window, error) {
	if window <= 0 {
		return kv.Window{}, kv.ErrInvalidTTL
	}
	windowMS := window.Milliseconds()
	if windowMS < 1 {
		windowMS = 1
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := incrWindowLua.Run(ctx, s.redis, []string{key}, limit, windowMS).Int64Slice()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return kv.Window{}, kv.ErrNotInteger
		}
		return kv.Window{}, unavailable(err)
	}
	if len(res) != 3 {
		return kv.Window{}, fmt.Errorf("%w: unexpected script reply length %d", kv.ErrUnavailable, len(res))
	}

	return kv.Window{
		Count:      res[0],
		ResetAfter: time.Duration(res[1]) * time.Millisecond,
		Allowed:    res[2] == 1,
	}, nil
}

// DeletePrefix implements kv.Store with SCAN + DEL. On cluster clients every
// master is scanned.
//
// The scan is not a snapshot: keys created under prefix while the scan runs
// may survive.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(prefix) + "*"

	if cluster, ok := s.redis.(*redis.ClusterClient); ok {
		var (
			mu    sync.Mutex
			total int64
		)
		err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := s.deleteMatching(ctx, node, pattern)
			mu.Lock()
			total += n
			mu.Unlock()
			return err
		})
		if err != nil {
			return int(total), unavailable(err)
		}
		return int(total), nil
	}

	n, err := s.deleteMatching(ctx, s.redis, pattern)
	if err != nil {
		return int(n), unavailable(err)
	}
	return int(n), nil
}

func (s *Store) deleteMatching(ctx context.Context, client redis.Cmdable, pattern string) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		callCtx, cancel := s.bound(ctx)
		keys, next, err := client.Scan(callCtx, cursor, pattern, scanBatch).Result()
		cancel()
		if err != nil {
			return removed, err
		}

		if len(keys) > 0 {
			callCtx, cancel = s.bound(ctx)
			n, err := client.Del(callCtx, keys...).Result()
			cancel()
			if err != nil {
				return removed, err
			}
			removed += n
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Ping implements kv.Store.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	return s.redis.Close()
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
}

func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
