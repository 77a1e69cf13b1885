package goSession

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/goSession/kv/kvtest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = append([]byte(nil), testSecret...)
	cfg.Activity.Async = false
	return cfg
}

// newMemoryEngine builds an Engine on the fallback store driven by a fake
// clock.
func newMemoryEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *kvtest.Clock) {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	clock := kvtest.NewClock()
	engine, err := New().WithConfig(cfg).WithClock(clock.Now).Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine, clock
}

// newRedisEngine builds an Engine on miniredis. The fake clock drives
// credential expiry; redis TTLs advance with mr.FastForward.
func newRedisEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *miniredis.Miniredis, *kvtest.Clock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	clock := kvtest.NewClock()
	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithClock(clock.Now).Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	if !engine.Backend().Remote {
		t.Fatalf("expected redis backend, got %+v", engine.Backend())
	}
	return engine, mr, clock
}

type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (s *recordingSink) Emit(_ context.Context, event ActivityEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}
