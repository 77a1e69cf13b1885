package activity

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/codec"
	"github.com/MrEthical07/goSession/kv"
)

// DefaultLogTTL is how long an activity-log entry is retained.
const DefaultLogTTL = 7 * 24 * time.Hour

// Event is one activity-log entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp" cbor:"timestamp"`
	UserID    string            `json:"user_id" cbor:"user_id"`
	Action    string            `json:"action" cbor:"action"`
	IP        string            `json:"ip,omitempty" cbor:"ip,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" cbor:"metadata,omitempty"`
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// StoreSink persists events as expiring kv entries.
type StoreSink struct {
	store   kv.Store
	keys    kv.Keyspace
	codec   *codec.Codec
	ttl     time.Duration
	onError func(error)

	mu   sync.Mutex
	last map[string]int64
}

// NewStoreSink creates a StoreSink. ttl <= 0 selects DefaultLogTTL.
// onError, when set, is called for every failed write.
func NewStoreSink(store kv.Store, keys kv.Keyspace, c *codec.Codec, ttl time.Duration, onError func(error)) *StoreSink {
	if ttl <= 0 {
		ttl = DefaultLogTTL
	}
	return &StoreSink{
		store:   store,
		keys:    keys,
		codec:   c,
		ttl:     ttl,
		onError: onError,
		last:    make(map[string]int64),
	}
}

// Emit writes one entry. Errors go to the callback only.
func (s *StoreSink) Emit(ctx context.Context, event Event) {
	if event.UserID == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := s.codec.Marshal(event)
	if err != nil {
		s.fail(err)
		return
	}
	if err := s.store.Put(ctx, s.key(event), data, s.ttl); err != nil {
		s.fail(err)
	}
}

// key is unique per user even when two events share a timestamp.
func (s *StoreSink) key(event Event) string {
	stamp := event.Timestamp.UnixNano()

	s.mu.Lock()
	if prev, ok := s.last[event.UserID]; ok && stamp <= prev {
		stamp = prev + 1
	}
	s.last[event.UserID] = stamp
	if len(s.last) > 4096 {
		s.last = map[string]int64{event.UserID: stamp}
	}
	s.mu.Unlock()

	return s.keys.Key(kv.CategoryActivity, kv.EscapeID(event.UserID), strconv.FormatInt(stamp, 10))
}

func (s *StoreSink) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
