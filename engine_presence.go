package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/activity"
)

// SetOnline marks user online for Presence.OnlineTTL. Calling it again
// restarts the horizon.
func (e *Engine) SetOnline(ctx context.Context, user string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.writeFailed("set_online", e.presence.SetOnline(ctx, user))
}

// SetOffline removes the presence marker. It is idempotent.
func (e *Engine) SetOffline(ctx context.Context, user string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.writeFailed("set_offline", e.presence.SetOffline(ctx, user))
}

// IsOnline reports whether user has been seen within Presence.OnlineTTL.
func (e *Engine) IsOnline(ctx context.Context, user string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}

	online, err := e.presence.IsOnline(ctx, user)
	if err != nil {
		return false, e.degrade("is_online", err)
	}
	return online, nil
}

// TouchActivity records now as user's last activity.
func (e *Engine) TouchActivity(ctx context.Context, user string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.writeFailed("touch_activity", e.presence.TouchActivity(ctx, user))
}

// LastActivity returns the time recorded by the latest TouchActivity.
// ok is false when nothing is recorded within Presence.ActivityTTL.
func (e *Engine) LastActivity(ctx context.Context, user string) (time.Time, bool, error) {
	if e == nil {
		return time.Time{}, false, ErrEngineNotReady
	}

	at, ok, err := e.presence.LastActivity(ctx, user)
	if err != nil {
		return time.Time{}, false, e.degrade("last_activity", err)
	}
	return at, ok, nil
}

// LogActivity appends an entry to user's activity log. It never fails the
// caller: with Activity.Async the entry is queued and may be dropped when
// the buffer is full, otherwise it is written inline and a failed write is
// only counted and logged.
//
// The client IP is taken from ctx, see WithClientIP.
func (e *Engine) LogActivity(ctx context.Context, user, action string, metadata map[string]string) {
	if e == nil || user == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := activity.Event{
		Timestamp: e.now(),
		UserID:    user,
		Action:    action,
		IP:        clientIPFromContext(ctx),
		Metadata:  cloneMetadata(metadata),
	}

	if e.activity != nil {
		e.activity.Emit(ctx, event)
	} else {
		e.activitySink.Emit(ctx, event)
	}
	e.metricInc(MetricActivityLogged)
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
