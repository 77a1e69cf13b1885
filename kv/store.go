package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get and TTL when a key is absent or expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable wraps every transport, timeout, or server failure of a networked backend.
	ErrUnavailable = errors.New("kv: backend unavailable")
	// ErrInvalidTTL is returned when a write would produce a non-expiring key.
	ErrInvalidTTL = errors.New("kv: ttl must be > 0")
	// ErrNotInteger is returned by IncrWindow when the key holds a non-counter value.
	ErrNotInteger = errors.New("kv: value is not an integer")
)

// Window is the outcome of one fixed-window counter hit.
type Window struct {
	// Count is the counter value after the hit. Rejected hits do not increment.
	Count int64
	// Allowed reports whether the hit fit within the limit.
	Allowed bool
	// ResetAfter is the remaining lifetime of the current window.
	ResetAfter time.Duration
}

// Store is the TTL key-value capability.
//
// Implementations must be safe for concurrent use. Every key written through
// Store carries an expiry; there is no way to persist a key forever.
type Store interface {
	// Put writes value under key, replacing any previous value and TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the live value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
	// Extend resets the TTL of a live key. It reports false when key is absent.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Exists reports whether key is live.
	Exists(ctx context.Context, key string) (bool, error)
	// TTL returns the remaining lifetime of a live key or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// IncrWindow records one hit on a fixed-window counter as a single atomic step.
	IncrWindow(ctx context.Context, key string, limit int64, window time.Duration) (Window, error)
	// DeletePrefix removes every live key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Ping checks backend liveness.
	Ping(ctx context.Context) error
	// Name identifies the backend ("redis", "memory").
	Name() string
	// Close releases backend resources.
	Close() error
}
