package goSession

import (
	"context"
	"time"
)

// RateLimitCheck records one hit for id in a fixed window of length window
// and reports whether it is within limit.
//
// The first hit opens the window. Hits beyond limit are rejected without
// being counted, and ResetAfter tells the caller when the window lapses.
// Both backends count for real; under fail-open a backend error answers
// allowed with the full budget.
func (e *Engine) RateLimitCheck(ctx context.Context, id string, limit int, window time.Duration) (RateLimitResult, error) {
	if e == nil {
		return RateLimitResult{}, ErrEngineNotReady
	}

	res, err := e.limiter.Check(ctx, id, limit, window)
	if err != nil {
		if err := e.degrade("rate_limit_check", err); err != nil {
			return RateLimitResult{}, err
		}
		e.metricInc(MetricRateLimitAllowed)
		return RateLimitResult{Allowed: true, Limit: limit, Remaining: limit, ResetAfter: window}, nil
	}

	if res.Allowed {
		e.metricInc(MetricRateLimitAllowed)
	} else {
		e.metricInc(MetricRateLimitRejected)
	}
	return RateLimitResult{
		Allowed:    res.Allowed,
		Limit:      res.Limit,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
	}, nil
}

// RateLimitReset clears the counter for id.
func (e *Engine) RateLimitReset(ctx context.Context, id string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if id == "" {
		return ErrRateLimitInvalid
	}
	return e.writeFailed("rate_limit_reset", e.limiter.Reset(ctx, id))
}
