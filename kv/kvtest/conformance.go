// Package kvtest provides a conformance suite every kv.Store backend must pass.
//
// Backends plug in through a Harness whose Advance moves the backend's notion
// of time forward, so TTL boundaries are tested without sleeping.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

// Harness binds one fresh backend instance to the suite.
type Harness struct {
	Store   kv.Store
	Advance func(d time.Duration)
}

// Run executes the suite. newHarness is called once per subtest.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, h Harness)
	}{
		{"PutGetRoundTrip", testPutGet},
		{"GetAbsent", testGetAbsent},
		{"ExpiredBehavesAsDeleted", testExpired},
		{"DeleteIsIdempotent", testDeleteIdempotent},
		{"ExtendLiveAndAbsent", testExtend},
		{"TTLReportsRemaining", testTTL},
		{"RejectsNonPositiveTTL", testInvalidTTL},
		{"FixedWindowCounter", testFixedWindow},
		{"FixedWindowDoesNotSlide", testFixedWindowNoSlide},
		{"FixedWindowConcurrentHits", testFixedWindowConcurrent},
		{"DeletePrefixCountsLiveKeys", testDeletePrefix},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.fn(t, h)
		})
	}
}

func testPutGet(t *testing.T, h Harness) {
	ctx := context.Background()
	if err := h.Store.Put(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := h.Store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("expected v1, got %q", got)
	}

	if err := h.Store.Put(ctx, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = h.Store.Get(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("expected overwrite to v2, got %q", got)
	}
}

func testGetAbsent(t *testing.T, h Harness) {
	ctx := context.Background()
	if _, err := h.Store.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ok, err := h.Store.Exists(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing key to not exist, got %v %v", ok, err)
	}
}

func testExpired(t *testing.T, h Harness) {
	ctx := context.Background()
	if err := h.Store.Put(ctx, "k", []byte("v"), 5*time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}

	h.Advance(4 * time.Second)
	if _, err := h.Store.Get(ctx, "k"); err != nil {
		t.Fatalf("expected key live before ttl, got %v", err)
	}

	h.Advance(time.Second)
	if _, err := h.Store.Get(ctx, "k"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
	if ok, _ := h.Store.Exists(ctx, "k"); ok {
		t.Fatal("expected expired key to not exist")
	}
	if ok, _ := h.Store.Extend(ctx, "k", time.Minute); ok {
		t.Fatal("expected extend on expired key to report false")
	}
}

func testDeleteIdempotent(t *testing.T, h Harness) {
	ctx := context.Background()
	if err := h.Store.Delete(ctx, "never-written"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	_ = h.Store.Put(ctx, "k", []byte("v"), time.Minute)
	if err := h.Store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := h.Store.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if ok, _ := h.Store.Exists(ctx, "k"); ok {
		t.Fatal("expected deleted key to not exist")
	}
}

func testExtend(t *testing.T, h Harness) {
	ctx := context.Background()
	if ok, err := h.Store.Extend(ctx, "missing", time.Minute); err != nil || ok {
		t.Fatalf("expected false for absent key, got %v %v", ok, err)
	}

	_ = h.Store.Put(ctx, "k", []byte("v"), 2*time.Second)
	h.Advance(time.Second)
	ok, err := h.Store.Extend(ctx, "k", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected extend true, got %v %v", ok, err)
	}
	h.Advance(3 * time.Second)
	if ok, _ := h.Store.Exists(ctx, "k"); !ok {
		t.Fatal("expected extended key to outlive its original ttl")
	}
	h.Advance(2 * time.Second)
	if ok, _ := h.Store.Exists(ctx, "k"); ok {
		t.Fatal("expected extended key to expire at its new deadline")
	}
}

func testTTL(t *testing.T, h Harness) {
	ctx := context.Background()
	if _, err := h.Store.TTL(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = h.Store.Put(ctx, "k", []byte("v"), 10*time.Second)
	h.Advance(4 * time.Second)
	ttl, err := h.Store.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > 6*time.Second {
		t.Fatalf("expected remaining ttl in (0, 6s], got %v", ttl)
	}
}

func testInvalidTTL(t *testing.T, h Harness) {
	ctx := context.Background()
	if err := h.Store.Put(ctx, "k", []byte("v"), 0); !errors.Is(err, kv.ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL from Put, got %v", err)
	}
	if _, err := h.Store.Extend(ctx, "k", -time.Second); !errors.Is(err, kv.ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL from Extend, got %v", err)
	}
	if _, err := h.Store.IncrWindow(ctx, "c", 3, 0); !errors.Is(err, kv.ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL from IncrWindow, got %v", err)
	}
}

func testFixedWindow(t *testing.T, h Harness) {
	ctx := context.Background()
	const limit = 3
	window := time.Minute

	for i := int64(1); i <= limit; i++ {
		w, err := h.Store.IncrWindow(ctx, "c", limit, window)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if !w.Allowed || w.Count != i {
			t.Fatalf("hit %d: expected allowed count=%d, got %+v", i, i, w)
		}
	}

	w, err := h.Store.IncrWindow(ctx, "c", limit, window)
	if err != nil {
		t.Fatalf("hit 4: %v", err)
	}
	if w.Allowed {
		t.Fatalf("expected hit 4 rejected, got %+v", w)
	}
	if w.Count != limit {
		t.Fatalf("expected rejected hit not to increment, got count %d", w.Count)
	}
	if w.ResetAfter <= 0 || w.ResetAfter > window {
		t.Fatalf("expected reset hint in (0, %v], got %v", window, w.ResetAfter)
	}

	h.Advance(window)
	w, err = h.Store.IncrWindow(ctx, "c", limit, window)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	if !w.Allowed || w.Count != 1 {
		t.Fatalf("expected fresh window count=1, got %+v", w)
	}
}

func testFixedWindowNoSlide(t *testing.T, h Harness) {
	ctx := context.Background()
	window := time.Minute

	if _, err := h.Store.IncrWindow(ctx, "c", 10, window); err != nil {
		t.Fatalf("first hit: %v", err)
	}
	h.Advance(40 * time.Second)
	w, err := h.Store.IncrWindow(ctx, "c", 10, window)
	if err != nil {
		t.Fatalf("second hit: %v", err)
	}
	if w.ResetAfter > 20*time.Second {
		t.Fatalf("expected increment to keep the original deadline, reset after %v", w.ResetAfter)
	}

	h.Advance(20 * time.Second)
	w, _ = h.Store.IncrWindow(ctx, "c", 10, window)
	if w.Count != 1 {
		t.Fatalf("expected counter reset exactly at window boundary, got %+v", w)
	}
}

func testFixedWindowConcurrent(t *testing.T, h Harness) {
	ctx := context.Background()
	const (
		limit   = 20
		workers = 64
	)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		failed  atomic.Int64
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			w, err := h.Store.IncrWindow(ctx, "shared", limit, time.Minute)
			if err != nil {
				failed.Add(1)
				return
			}
			if w.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if failed.Load() != 0 {
		t.Fatalf("expected no errors, got %d", failed.Load())
	}
	if allowed.Load() != limit {
		t.Fatalf("expected exactly %d allowed hits, got %d", limit, allowed.Load())
	}
}

func testDeletePrefix(t *testing.T, h Harness) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = h.Store.Put(ctx, fmt.Sprintf("app:cache:user:%d", i), []byte("x"), time.Minute)
	}
	_ = h.Store.Put(ctx, "app:cache:lesson:1", []byte("x"), time.Minute)
	_ = h.Store.Put(ctx, "app:online:user:1", []byte("x"), time.Minute)

	n, err := h.Store.DeletePrefix(ctx, "app:cache:user:")
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
	if ok, _ := h.Store.Exists(ctx, "app:cache:lesson:1"); !ok {
		t.Fatal("expected sibling cache key to survive")
	}
	if ok, _ := h.Store.Exists(ctx, "app:online:user:1"); !ok {
		t.Fatal("expected other category to survive")
	}

	n, err = h.Store.DeletePrefix(ctx, "app:cache:nothing:")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 removed for unmatched prefix, got %d %v", n, err)
	}
}
