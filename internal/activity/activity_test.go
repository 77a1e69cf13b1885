package activity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/codec"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/kv/kvtest"
	"github.com/MrEthical07/goSession/kv/memory"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type failingStore struct {
	kv.Store
}

func (failingStore) Put(context.Context, string, []byte, time.Duration) error {
	return kv.ErrUnavailable
}

func newTestCodec(t *testing.T) *codec.Codec {
	t.Helper()
	c, err := codec.New(codec.EncodingJSON, 0)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{UserID: "alice"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected nil dispatcher to report no drops")
	}
}

func TestDispatcherDeliversBeforeClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{UserID: "alice", Action: "login"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered after drain, got %d", got)
	}
}

func TestDispatcherDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Action: "e1"})
	d.Emit(context.Background(), Event{Action: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{Action: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increase")
	}
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Action: "e1"})
	d.Emit(context.Background(), Event{Action: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{Action: "e3"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to return once ctx expired")
	}
}

func TestStoreSinkWritesExpiringEntries(t *testing.T) {
	clock := kvtest.NewClock()
	store := memory.New(memory.WithClock(clock.Now))
	defer store.Close()

	keys := kv.NewKeyspace("test")
	c := newTestCodec(t)
	sink := NewStoreSink(store, keys, c, 0, nil)

	at := clock.Now()
	sink.Emit(context.Background(), Event{Timestamp: at, UserID: "alice", Action: "login", IP: "203.0.113.9"})
	sink.Emit(context.Background(), Event{Timestamp: at, UserID: "alice", Action: "view"})

	n, err := store.DeletePrefix(context.Background(), keys.Key(kv.CategoryActivity, "alice")+":")
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 distinct log entries for equal timestamps, got %d", n)
	}

	sink.Emit(context.Background(), Event{Timestamp: at, UserID: "bob", Action: "login"})
	key := keys.Key(kv.CategoryActivity, "bob", "1700000000000000000")
	raw, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	var ev Event
	if err := c.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Action != "login" || ev.UserID != "bob" {
		t.Fatalf("unexpected event %+v", ev)
	}

	clock.Advance(DefaultLogTTL)
	if ok, _ := store.Exists(context.Background(), key); ok {
		t.Fatal("expected log entry to expire after 7 days")
	}
}

func TestStoreSinkReportsFailures(t *testing.T) {
	var failures atomic.Int64
	sink := NewStoreSink(failingStore{}, kv.NewKeyspace("test"), newTestCodec(t), time.Hour, func(err error) {
		if errors.Is(err, kv.ErrUnavailable) {
			failures.Add(1)
		}
	})

	sink.Emit(context.Background(), Event{UserID: "alice", Action: "login"})
	if failures.Load() != 1 {
		t.Fatalf("expected one reported failure, got %d", failures.Load())
	}
}

type deadlineSink struct {
	hasDeadline atomic.Bool
	calls       atomic.Int64
}

func (s *deadlineSink) Emit(ctx context.Context, _ Event) {
	if _, ok := ctx.Deadline(); ok {
		s.hasDeadline.Store(true)
	}
	s.calls.Add(1)
}

func TestDispatcherCloseIsIdempotentAndDiscardsLateEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	d.Emit(context.Background(), Event{UserID: "alice"})
	d.Close()
	d.Close()

	d.Emit(context.Background(), Event{UserID: "alice"})
	if got := sink.count.Load(); got != 1 {
		t.Fatalf("expected only the pre-close event, got %d", got)
	}
}

func TestDispatcherMultipleWorkersDeliverEverything(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16, Workers: 4}, sink)

	for i := 0; i < 500; i++ {
		d.Emit(context.Background(), Event{UserID: "u", Action: "a"})
	}
	d.Close()

	if got := sink.count.Load(); got != 500 {
		t.Fatalf("expected 500 delivered, got %d", got)
	}
}

func TestDispatcherBoundsDelivery(t *testing.T) {
	sink := &deadlineSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DeliveryTimeout: time.Second}, sink)
	d.Emit(context.Background(), Event{UserID: "alice"})
	d.Close()

	if sink.calls.Load() != 1 || !sink.hasDeadline.Load() {
		t.Fatalf("expected one bounded delivery, calls=%d deadline=%v", sink.calls.Load(), sink.hasDeadline.Load())
	}
}
