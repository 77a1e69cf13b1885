package goSession

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/activity"
	"github.com/MrEthical07/goSession/internal/codec"
	"github.com/MrEthical07/goSession/internal/presence"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
	"go.uber.org/zap"
)

// Engine is the session and token state layer. Build one with [Builder]
// and share it; all methods are safe for concurrent use.
type Engine struct {
	config    Config
	store     kv.Store
	ownsStore bool
	keys      kv.Keyspace
	backend   BackendInfo
	logger    *zap.Logger
	now       func() time.Time

	codec    *codec.Codec
	jwt      *jwt.Manager
	limiter  *rate.Limiter
	presence *presence.Tracker
	sessions *session.Store

	activity     *activity.Dispatcher
	activitySink activity.Sink
	metrics      *Metrics

	closeOnce sync.Once
	closeErr  error
}

// Backend reports which store Build selected and why.
func (e *Engine) Backend() BackendInfo {
	if e == nil {
		return BackendInfo{}
	}
	return e.backend
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Ping checks the selected store. The in-process store always answers.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

// Close drains the activity dispatcher and releases the store when the
// Engine created it. Calling Close again returns the first result.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.closeOnce.Do(func() {
		e.activity.Close()
		if e.ownsStore {
			e.closeErr = e.store.Close()
		}
		if err := e.codec.Close(); e.closeErr == nil {
			e.closeErr = err
		}
	})
	return e.closeErr
}

// ActivityDropped returns how many activity-log entries the dispatcher
// dropped because its buffer was full.
func (e *Engine) ActivityDropped() uint64 {
	if e == nil || e.activity == nil {
		return 0
	}
	return e.activity.Dropped()
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) activityFailed(err error) {
	e.metricInc(MetricActivityFailed)
	e.logger.Debug("activity log write failed", zap.Error(err))
}
