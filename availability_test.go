package goSession

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFailOpenAbsorbsBackendReads(t *testing.T) {
	engine, mr, _ := newRedisEngine(t)
	ctx := context.Background()

	token, _ := engine.MintToken("alice", time.Hour)
	_ = engine.CachePut(ctx, "k", "v", time.Minute)
	mr.Close()

	claims, err := engine.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("expected fail-open validate to accept, got %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if _, err := engine.Authenticate(ctx, token); err != nil {
		t.Fatalf("expected presence failures not to fail authenticate, got %v", err)
	}
	if ok, err := engine.IsBlacklisted(ctx, claims.TokenID); ok || err != nil {
		t.Fatalf("expected not blacklisted, ok=%v err=%v", ok, err)
	}
	if online, err := engine.IsOnline(ctx, "alice"); online || err != nil {
		t.Fatalf("expected offline, online=%v err=%v", online, err)
	}
	var v string
	if ok, err := engine.CacheGet(ctx, "k", &v); ok || err != nil {
		t.Fatalf("expected cache miss, ok=%v err=%v", ok, err)
	}
	if _, ok, err := engine.LastActivity(ctx, "alice"); ok || err != nil {
		t.Fatalf("expected no activity, ok=%v err=%v", ok, err)
	}
	if _, err := engine.GetSession(ctx, "sid"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	res, err := engine.RateLimitCheck(ctx, "ip", 3, time.Minute)
	if err != nil {
		t.Fatalf("expected fail-open rate limit, got %v", err)
	}
	if !res.Allowed || res.Remaining != 3 || res.ResetAfter != time.Minute {
		t.Fatalf("expected permissive result, got %+v", res)
	}

	if err := engine.CachePut(ctx, "k", "v", time.Minute); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected write to report ErrBackendUnavailable, got %v", err)
	}
	if err := engine.RevokeToken(ctx, token); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected revoke to report ErrBackendUnavailable, got %v", err)
	}
	engine.LogActivity(ctx, "alice", "viewed", nil)

	if engine.Backend().Name != "redis" {
		t.Fatalf("expected backend choice to stay fixed, got %+v", engine.Backend())
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricFailOpen] == 0 {
		t.Fatalf("expected fail-open counted")
	}
	if snap.Counters[MetricActivityFailed] != 1 {
		t.Fatalf("expected failed activity write counted, got %d", snap.Counters[MetricActivityFailed])
	}
}

func TestFailClosedReportsBackendErrors(t *testing.T) {
	engine, mr, _ := newRedisEngine(t, func(cfg *Config) {
		cfg.Availability.FailOpen = false
	})
	ctx := context.Background()

	token, _ := engine.MintToken("alice", time.Hour)
	mr.Close()

	if _, err := engine.ValidateToken(ctx, token); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if _, err := engine.IsOnline(ctx, "alice"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	var v string
	if _, err := engine.CacheGet(ctx, "k", &v); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if _, err := engine.RateLimitCheck(ctx, "ip", 3, time.Minute); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if _, err := engine.GetSession(ctx, "sid"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}

	if got := engine.MetricsSnapshot().Counters[MetricFailOpen]; got != 0 {
		t.Fatalf("expected no fail-open under fail-closed, got %d", got)
	}
}

func TestNilEngineIsSafe(t *testing.T) {
	var engine *Engine
	ctx := context.Background()

	if _, err := engine.MintToken("a", time.Minute); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.ValidateToken(ctx, "t"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	engine.LogActivity(ctx, "a", "b", nil)
	if err := engine.Close(); err != nil {
		t.Fatalf("expected nil close, got %v", err)
	}
}
