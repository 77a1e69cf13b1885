package goSession

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/activity"
	"github.com/MrEthical07/goSession/internal/codec"
	"github.com/MrEthical07/goSession/internal/presence"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/kv/redisstore"
	"github.com/MrEthical07/goSession/session"
)

// Config holds every Engine setting. Start from DefaultConfig and override
// fields; Build validates the result.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	// KeyPrefix is the first segment of every physical key.
	KeyPrefix    string
	Token        TokenConfig
	Backend      BackendConfig
	Availability AvailabilityConfig
	Presence     PresenceConfig
	Cache        CacheConfig
	Session      SessionConfig
	RateLimit    RateLimitConfig
	Activity     ActivityConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures credential signing.
type TokenConfig struct {
	// SigningMethod is "hs256" (default), "hs384" or "hs512".
	SigningMethod string
	// Secret is the shared HMAC key, at least 32 bytes.
	Secret     []byte
	DefaultTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig configures the remote store and the fallback.
type BackendConfig struct {
	// RedisURL is used when no client is passed to Builder.WithRedis.
	// Empty means no remote backend.
	RedisURL string
	// DialTimeout bounds connecting and the startup probe.
	DialTimeout time.Duration
	// OpTimeout bounds every Redis call after startup.
	OpTimeout time.Duration
	// SweepInterval enables periodic eviction in the fallback store.
	// Zero leaves eviction lazy.
	SweepInterval time.Duration
}

// AvailabilityConfig holds the backend-failure policy.
type AvailabilityConfig struct {
	// FailOpen answers reads with the negative value when the backend errors.
	FailOpen bool
}

// PresenceConfig configures online and activity horizons.
type PresenceConfig struct {
	OnlineTTL   time.Duration
	ActivityTTL time.Duration
}

// CacheConfig configures the generic cache.
type CacheConfig struct {
	DefaultTTL time.Duration
	// Encoding is "json" (default) or "cbor". Sessions use it too.
	Encoding string
	// CompressThreshold is the encoded size in bytes from which values are
	// zstd compressed. Zero disables compression.
	CompressThreshold int
}

// SessionConfig configures server-side sessions.
type SessionConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds the limit and window middleware.RateLimit uses
// when it is given none.
type RateLimitConfig struct {
	DefaultLimit  int
	DefaultWindow time.Duration
}

// ActivityConfig configures the activity log.
type ActivityConfig struct {
	LogTTL time.Duration
	// Async hands entries to a background dispatcher instead of writing
	// them on the caller's goroutine.
	Async      bool
	BufferSize int
	DropIfFull bool
	// Workers is the number of delivery goroutines. Above one, entries of
	// the same user may be written out of order.
	Workers int
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the defaults. Token.Secret is left empty and must
// be set.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: kv.DefaultPrefix,
		Token: TokenConfig{
			SigningMethod: string(jwt.MethodHS256),
			DefaultTTL:    24 * time.Hour,
		},
		Backend: BackendConfig{
			DialTimeout: 2 * time.Second,
			OpTimeout:   redisstore.DefaultOpTimeout,
		},
		Availability: AvailabilityConfig{
			FailOpen: true,
		},
		Presence: PresenceConfig{
			OnlineTTL:   presence.DefaultOnlineTTL,
			ActivityTTL: presence.DefaultActivityTTL,
		},
		Cache: CacheConfig{
			DefaultTTL:        time.Hour,
			Encoding:          string(codec.EncodingJSON),
			CompressThreshold: 4096,
		},
		Session: SessionConfig{
			TTL: session.DefaultTTL,
		},
		RateLimit: RateLimitConfig{
			DefaultLimit:  10,
			DefaultWindow: time.Minute,
		},
		Activity: ActivityConfig{
			LogTTL:     activity.DefaultLogTTL,
			Async:      true,
			BufferSize: 1024,
			DropIfFull: true,
			Workers:    1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if strings.Trim(strings.TrimSpace(c.KeyPrefix), ":") == "" {
		return invalid("KeyPrefix must not be empty")
	}

	switch jwt.SigningMethod(strings.ToLower(c.Token.SigningMethod)) {
	case jwt.MethodHS256, jwt.MethodHS384, jwt.MethodHS512:
	default:
		return invalid("unsupported Token SigningMethod %q", c.Token.SigningMethod)
	}
	if len(c.Token.Secret) < jwt.MinSecretLength {
		return invalid("Token Secret must be at least %d bytes", jwt.MinSecretLength)
	}
	if c.Token.DefaultTTL <= 0 {
		return invalid("Token DefaultTTL must be > 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return invalid("Token Leeway must be within [0, 2m]")
	}

	if c.Backend.DialTimeout <= 0 {
		return invalid("Backend DialTimeout must be > 0")
	}
	if c.Backend.OpTimeout <= 0 {
		return invalid("Backend OpTimeout must be > 0")
	}
	if c.Backend.SweepInterval < 0 {
		return invalid("Backend SweepInterval must be >= 0")
	}

	if c.Presence.OnlineTTL <= 0 {
		return invalid("Presence OnlineTTL must be > 0")
	}
	if c.Presence.ActivityTTL <= 0 {
		return invalid("Presence ActivityTTL must be > 0")
	}

	if c.Cache.DefaultTTL <= 0 {
		return invalid("Cache DefaultTTL must be > 0")
	}
	switch codec.Encoding(strings.ToLower(c.Cache.Encoding)) {
	case codec.EncodingJSON, codec.EncodingCBOR:
	default:
		return invalid("unsupported Cache Encoding %q", c.Cache.Encoding)
	}
	if c.Cache.CompressThreshold < 0 {
		return invalid("Cache CompressThreshold must be >= 0")
	}

	if c.Session.TTL <= 0 {
		return invalid("Session TTL must be > 0")
	}

	if c.RateLimit.DefaultLimit < 1 {
		return invalid("RateLimit DefaultLimit must be >= 1")
	}
	if c.RateLimit.DefaultWindow <= 0 {
		return invalid("RateLimit DefaultWindow must be > 0")
	}

	if c.Activity.LogTTL <= 0 {
		return invalid("Activity LogTTL must be > 0")
	}
	if c.Activity.Async && c.Activity.BufferSize <= 0 {
		return invalid("Activity BufferSize must be > 0 when Async is true")
	}
	if c.Activity.Workers < 0 {
		return invalid("Activity Workers must be >= 0")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalid("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
