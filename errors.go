package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/internal/presence"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrAuthenticationFailed covers every credential rejection: malformed,
	// bad signature, expired or revoked.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrBackendUnavailable is returned when the store cannot be reached or
	// timed out and the availability policy does not absorb the failure.
	ErrBackendUnavailable = kv.ErrUnavailable
	// ErrInvalidConfig is returned by Config.Validate and Builder.Build.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidTTL is returned for a non-positive lifetime.
	ErrInvalidTTL = kv.ErrInvalidTTL
	// ErrRateLimitInvalid is returned for limit < 1, a non-positive window or an empty identifier.
	ErrRateLimitInvalid = rate.ErrInvalidLimit
	// ErrRateLimited is returned by middleware helpers when a window is exhausted.
	ErrRateLimited = rate.ErrRateLimited
	// ErrSessionNotFound is returned for an absent or expired session.
	ErrSessionNotFound = session.ErrNotFound
	// ErrEmptyUser is returned by presence writes for an empty user id.
	ErrEmptyUser = presence.ErrEmptyUser
	// ErrInvalidCacheKey is returned for an empty cache key.
	ErrInvalidCacheKey = errors.New("invalid cache key")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrBuilderUsed is returned by a second call to Builder.Build.
	ErrBuilderUsed = errors.New("builder already used")
)
