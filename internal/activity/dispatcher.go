package activity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Workers is the number of delivery goroutines. Zero means one, which
	// keeps entries for a user in emit order.
	Workers int
	// DeliveryTimeout bounds each Sink.Emit call. Zero means unbounded.
	DeliveryTimeout time.Duration
}

// Dispatcher hands events to a sink on background workers so the emitting
// request never waits on the backend.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	timeout    time.Duration

	// mu guards queue against close while an Emit is sending on it.
	mu     sync.RWMutex
	closed bool
	queue  chan Event

	workers sync.WaitGroup
	dropped atomic.Uint64
}

// NewDispatcher starts the workers. It returns nil when cfg is disabled;
// a nil Dispatcher ignores every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		timeout:    cfg.DeliveryTimeout,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
	}

	n := max(cfg.Workers, 1)
	d.workers.Add(n)
	for i := 0; i < n; i++ {
		go d.work()
	}
	return d
}

// work delivers until the queue is closed and empty.
func (d *Dispatcher) work() {
	defer d.workers.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	d.sink.Emit(ctx, event)
}

// Emit queues event. With DropIfFull a full buffer drops the event and
// counts it; otherwise Emit waits for room or ctx cancellation. Events
// emitted after Close are discarded.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops accepting events, delivers what is buffered and waits for
// the workers to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

// Dropped returns how many events DropIfFull discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
