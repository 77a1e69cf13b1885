// Package memory is the in-process fallback implementation of kv.Store.
//
// Expiry is enforced lazily: every read or write of a key first checks its
// deadline and drops it when stale. Entries that are never touched again
// linger until the process exits, unless a periodic sweep is enabled with
// [WithSweepInterval].
//
// All operations run under a single mutex, so per-key read-modify-write
// sequences (IncrWindow, Extend) never lose updates. The store never blocks
// on I/O.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Tests use it to step past TTL boundaries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepInterval enables a background sweep that drops expired entries
// every interval. Zero or negative disables it.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) {
		s.sweepInterval = interval
	}
}

// Store is a mutex-guarded map with lazy TTL eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	sweepInterval time.Duration
	stop          chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

var _ kv.Store = (*Store)(nil)

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

// Name implements kv.Store.
func (s *Store) Name() string { return "memory" }

// Put implements kv.Store.
func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return kv.ErrInvalidTTL
	}

	buf := make([]byte, len(value))
	copy(buf, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: buf, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(key, s.now())
	if !ok {
		return nil, kv.ErrNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Delete implements kv.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Extend implements kv.Store.
func (s *Store) Extend(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, kv.ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.liveLocked(key, now)
	if !ok {
		return false, nil
	}
	e.expiresAt = now.Add(ttl)
	s.entries[key] = e
	return true, nil
}

// Exists implements kv.Store.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(key, s.now())
	return ok, nil
}

// TTL implements kv.Store.
func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.liveLocked(key, now)
	if !ok {
		return 0, kv.ErrNotFound
	}
	return e.expiresAt.Sub(now), nil
}

// IncrWindow implements kv.Store with the same fixed-window algorithm the
// Redis script runs, inside one critical section.
func (s *Store) IncrWindow(_ context.Context, key string, limit int64, window time.Duration) (kv.Window, error) {
	if window <= 0 {
		return kv.Window{}, kv.ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.liveLocked(key, now)
	if !ok {
		s.entries[key] = entry{value: []byte("1"), expiresAt: now.Add(window)}
		return kv.Window{Count: 1, Allowed: limit >= 1, ResetAfter: window}, nil
	}

	count, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return kv.Window{}, kv.ErrNotInteger
	}

	remaining := e.expiresAt.Sub(now)
	if count >= limit {
		return kv.Window{Count: count, Allowed: false, ResetAfter: remaining}, nil
	}

	count++
	e.value = strconv.AppendInt(e.value[:0], count, 10)
	s.entries[key] = e
	return kv.Window{Count: count, Allowed: true, ResetAfter: remaining}, nil
}

// DeletePrefix implements kv.Store. Only live entries are counted; stale
// ones under the prefix are dropped silently.
func (s *Store) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !e.expired(now) {
			removed++
		}
		delete(s.entries, key)
	}
	return removed, nil
}

// Ping implements kv.Store. The in-process store is always reachable.
func (s *Store) Ping(context.Context) error { return nil }

// Close stops the sweeper, if any. The data stays readable.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

// Len returns the number of stored entries, including stale ones not yet
// evicted.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *Store) liveLocked(key string, now time.Time) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(now) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}
