package rate

import (
	"context"
	"math"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

// Result is the outcome of one hit against a window.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// RetryAfterSeconds rounds ResetAfter up to whole seconds, the unit used by
// the Retry-After header.
func (r Result) RetryAfterSeconds() int {
	if r.ResetAfter <= 0 {
		return 0
	}
	return int(math.Ceil(r.ResetAfter.Seconds()))
}

// Limiter counts hits per identifier in fixed windows.
type Limiter struct {
	store kv.Store
	keys  kv.Keyspace
}

// New creates a Limiter over store.
func New(store kv.Store, keys kv.Keyspace) *Limiter {
	return &Limiter{store: store, keys: keys}
}

// Check records one hit for id and reports whether it fits in the window.
// A rejected hit does not consume budget.
func (l *Limiter) Check(ctx context.Context, id string, limit int, window time.Duration) (Result, error) {
	if id == "" || limit < 1 || window <= 0 {
		return Result{}, ErrInvalidLimit
	}

	w, err := l.store.IncrWindow(ctx, l.key(id), int64(limit), window)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Allowed:    w.Allowed,
		Limit:      limit,
		ResetAfter: w.ResetAfter,
	}
	if w.Allowed {
		res.Remaining = limit - int(w.Count)
		if res.Remaining < 0 {
			res.Remaining = 0
		}
	}
	return res, nil
}

// Enforce is Check that reports a rejection as ErrRateLimited.
func (l *Limiter) Enforce(ctx context.Context, id string, limit int, window time.Duration) (Result, error) {
	res, err := l.Check(ctx, id, limit, window)
	if err != nil {
		return res, err
	}
	if !res.Allowed {
		return res, ErrRateLimited
	}
	return res, nil
}

// Reset clears the counter for id. Called after a successful login so
// earlier failures do not count against the next window.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	return l.store.Delete(ctx, l.key(id))
}

func (l *Limiter) key(id string) string {
	return l.keys.Key(kv.CategoryRateLimit, id)
}
