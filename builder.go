package goSession

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal/activity"
	"github.com/MrEthical07/goSession/internal/codec"
	"github.com/MrEthical07/goSession/internal/presence"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/kv/memory"
	"github.com/MrEthical07/goSession/kv/redisstore"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ActivitySink receives activity-log entries. The default sink persists
// them through the selected store.
type ActivitySink = activity.Sink

// ActivityEvent is one activity-log entry.
type ActivityEvent = activity.Event

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  kv.Store
	logger *zap.Logger
	now    func() time.Time
	sink   ActivitySink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the remote client. It takes precedence over
// Config.Backend.RedisURL. The Engine does not close a client it did not
// create.
//
// Remote calls are not retried by the Engine, and the client should not
// retry either: build it with MaxRetries: -1. Build logs a warning for a
// *redis.Client that still retries.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore skips backend selection and uses store as-is.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for credential expiry, the fallback store and
// presence timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithActivitySink replaces the store-backed activity log sink.
func (b *Builder) WithActivitySink(sink ActivitySink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the config, selects the backend and wires the Engine.
//
// Backend selection runs exactly once here. With a Redis client or URL
// configured, Build pings it within Backend.DialTimeout; on any failure it
// logs the reason and uses the in-process store for the life of the
// Engine. Build itself fails only on invalid configuration.
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	store, info, ownsStore := b.selectBackend(ctx, cfg, logger, now)
	keys := kv.NewKeyspace(cfg.KeyPrefix)

	release := func() {
		if ownsStore {
			_ = store.Close()
		}
	}

	c, err := codec.New(codec.Encoding(cfg.Cache.Encoding), cfg.Cache.CompressThreshold)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		Secret:        cfg.Token.Secret,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		Now:           now,
	})
	if err != nil {
		_ = c.Close()
		release()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	engine := &Engine{
		config:    cfg,
		store:     store,
		ownsStore: ownsStore,
		keys:      keys,
		backend:   info,
		logger:    logger,
		now:       now,
		codec:     c,
		jwt:       jm,
		limiter:   rate.New(store, keys),
		presence: presence.New(store, keys, presence.Config{
			OnlineTTL:   cfg.Presence.OnlineTTL,
			ActivityTTL: cfg.Presence.ActivityTTL,
			Now:         now,
		}),
		sessions: session.NewStore(store, keys, c, now),
		metrics:  NewMetrics(cfg.Metrics),
	}

	sink := b.sink
	if sink == nil {
		sink = activity.NewStoreSink(store, keys, c, cfg.Activity.LogTTL, engine.activityFailed)
	}
	engine.activitySink = sink
	engine.activity = activity.NewDispatcher(activity.Config{
		Enabled:         cfg.Activity.Async,
		BufferSize:      cfg.Activity.BufferSize,
		DropIfFull:      cfg.Activity.DropIfFull,
		Workers:         cfg.Activity.Workers,
		DeliveryTimeout: cfg.Backend.OpTimeout,
	}, sink)

	b.built = true
	return engine, nil
}

// selectBackend returns the store to use, what was chosen and why, and
// whether the Engine must close the store. Caller-supplied stores and
// clients are never closed by the Engine.
func (b *Builder) selectBackend(ctx context.Context, cfg Config, logger *zap.Logger, now func() time.Time) (kv.Store, BackendInfo, bool) {
	selectedAt := now()

	if b.store != nil {
		info := BackendInfo{Name: b.store.Name(), Remote: b.store.Name() == "redis", SelectedAt: selectedAt}
		if !info.Remote {
			info.FallbackReason = "store supplied by caller"
		}
		logger.Info("backend supplied by caller", zap.String("backend", info.Name))
		return b.store, info, false
	}

	fallback := func(reason string) (kv.Store, BackendInfo, bool) {
		logger.Warn("using in-process backend", zap.String("reason", reason))
		mem := memory.New(
			memory.WithClock(now),
			memory.WithSweepInterval(cfg.Backend.SweepInterval),
		)
		return mem, BackendInfo{Name: mem.Name(), FallbackReason: reason, SelectedAt: selectedAt}, true
	}

	client := b.redis
	owned := false
	if n := clientRetries(client); n > 0 {
		logger.Warn("redis client retries failed commands; set MaxRetries: -1", zap.Int("max_retries", n))
	}
	if client == nil {
		if cfg.Backend.RedisURL == "" {
			return fallback("no remote backend configured")
		}
		opts, err := redis.ParseURL(cfg.Backend.RedisURL)
		if err != nil {
			return fallback(fmt.Sprintf("invalid redis url: %v", err))
		}
		opts.MaxRetries = -1
		opts.DialTimeout = cfg.Backend.DialTimeout
		opts.ReadTimeout = cfg.Backend.OpTimeout
		opts.WriteTimeout = cfg.Backend.OpTimeout
		client = redis.NewClient(opts)
		owned = true
	}

	store := redisstore.New(client, cfg.Backend.OpTimeout)

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Backend.DialTimeout)
	defer cancel()
	if err := client.Ping(probeCtx).Err(); err != nil {
		if owned {
			_ = client.Close()
		}
		return fallback(fmt.Sprintf("redis probe failed: %v", err))
	}

	logger.Info("using redis backend")
	return store, BackendInfo{Name: store.Name(), Remote: true, SelectedAt: selectedAt}, owned
}

// clientRetries reports the effective retry count of a caller-supplied
// single-node client. go-redis normalises MaxRetries on construction, so -1
// reads back as 0 and an unset value as 3.
func clientRetries(client redis.UniversalClient) int {
	c, ok := client.(*redis.Client)
	if !ok || c == nil {
		return 0
	}
	return c.Options().MaxRetries
}
