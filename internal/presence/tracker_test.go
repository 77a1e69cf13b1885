package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/kv/kvtest"
	"github.com/MrEthical07/goSession/kv/memory"
)

func newTestTracker(t *testing.T) (*Tracker, *kvtest.Clock) {
	t.Helper()
	clock := kvtest.NewClock()
	store := memory.New(memory.WithClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return New(store, kv.NewKeyspace("test"), Config{Now: clock.Now}), clock
}

func TestOnlineMarkerExpiresAfterHorizon(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	if err := tr.SetOnline(ctx, "alice"); err != nil {
		t.Fatalf("set online: %v", err)
	}
	if ok, _ := tr.IsOnline(ctx, "alice"); !ok {
		t.Fatal("expected alice online")
	}

	clock.Advance(299 * time.Second)
	if ok, _ := tr.IsOnline(ctx, "alice"); !ok {
		t.Fatal("expected alice still online before 300s")
	}
	clock.Advance(time.Second)
	if ok, _ := tr.IsOnline(ctx, "alice"); ok {
		t.Fatal("expected alice offline after 300s without refresh")
	}
}

func TestSetOnlineRefreshesHorizon(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	_ = tr.SetOnline(ctx, "alice")
	clock.Advance(200 * time.Second)
	_ = tr.SetOnline(ctx, "alice")
	clock.Advance(200 * time.Second)

	if ok, _ := tr.IsOnline(ctx, "alice"); !ok {
		t.Fatal("expected refresh to restart the horizon")
	}
}

func TestSetOfflineIsIdempotent(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_ = tr.SetOnline(ctx, "alice")
	if err := tr.SetOffline(ctx, "alice"); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	if err := tr.SetOffline(ctx, "alice"); err != nil {
		t.Fatalf("second set offline: %v", err)
	}
	if ok, _ := tr.IsOnline(ctx, "alice"); ok {
		t.Fatal("expected alice offline")
	}
}

func TestTouchActivityRecordsTime(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	if _, ok, err := tr.LastActivity(ctx, "alice"); ok || err != nil {
		t.Fatalf("expected no record, got %v %v", ok, err)
	}

	if err := tr.TouchActivity(ctx, "alice"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	at, ok, err := tr.LastActivity(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("expected record, got %v %v", ok, err)
	}
	if !at.Equal(clock.Now()) {
		t.Fatalf("expected %v, got %v", clock.Now(), at)
	}

	clock.Advance(DefaultActivityTTL)
	if _, ok, _ := tr.LastActivity(ctx, "alice"); ok {
		t.Fatal("expected record gone after 24h")
	}
}

func TestEmptyUserRejectedOnWrite(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	if err := tr.SetOnline(ctx, ""); !errors.Is(err, ErrEmptyUser) {
		t.Fatalf("expected ErrEmptyUser, got %v", err)
	}
	if err := tr.TouchActivity(ctx, ""); !errors.Is(err, ErrEmptyUser) {
		t.Fatalf("expected ErrEmptyUser, got %v", err)
	}
	if ok, err := tr.IsOnline(ctx, ""); ok || err != nil {
		t.Fatalf("expected empty user offline, got %v %v", ok, err)
	}
}
