// Package presence tracks which users are online and when they last acted.
//
// A user is online while <prefix>:online:<user> exists; the marker is
// rewritten with a fresh TTL on every authenticated action. The last
// activity time lives under <prefix>:activity:<user>.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

const (
	// DefaultOnlineTTL is how long a user stays online without another touch.
	DefaultOnlineTTL = 300 * time.Second
	// DefaultActivityTTL bounds how long the last-activity record is kept.
	DefaultActivityTTL = 24 * time.Hour
)

// ErrEmptyUser is returned for an empty user id.
var ErrEmptyUser = errors.New("presence: empty user id")

// Config sets the marker lifetimes.
type Config struct {
	OnlineTTL   time.Duration
	ActivityTTL time.Duration
	Now         func() time.Time
}

// Tracker reads and writes presence state through a kv.Store.
type Tracker struct {
	store kv.Store
	keys  kv.Keyspace
	cfg   Config
}

// New creates a Tracker. Zero durations select the defaults.
func New(store kv.Store, keys kv.Keyspace, cfg Config) *Tracker {
	if cfg.OnlineTTL <= 0 {
		cfg.OnlineTTL = DefaultOnlineTTL
	}
	if cfg.ActivityTTL <= 0 {
		cfg.ActivityTTL = DefaultActivityTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{store: store, keys: keys, cfg: cfg}
}

// SetOnline writes or refreshes the online marker.
func (t *Tracker) SetOnline(ctx context.Context, user string) error {
	if user == "" {
		return ErrEmptyUser
	}
	return t.store.Put(ctx, t.onlineKey(user), []byte("1"), t.cfg.OnlineTTL)
}

// SetOffline removes the online marker. Removing an absent marker succeeds.
func (t *Tracker) SetOffline(ctx context.Context, user string) error {
	if user == "" {
		return ErrEmptyUser
	}
	return t.store.Delete(ctx, t.onlineKey(user))
}

// IsOnline reports whether the marker exists.
func (t *Tracker) IsOnline(ctx context.Context, user string) (bool, error) {
	if user == "" {
		return false, nil
	}
	return t.store.Exists(ctx, t.onlineKey(user))
}

// TouchActivity overwrites the last-activity record with the current time.
func (t *Tracker) TouchActivity(ctx context.Context, user string) error {
	if user == "" {
		return ErrEmptyUser
	}
	stamp := t.cfg.Now().UTC().Format(time.RFC3339Nano)
	return t.store.Put(ctx, t.activityKey(user), []byte(stamp), t.cfg.ActivityTTL)
}

// LastActivity returns the recorded time. ok is false when there is no
// record or it cannot be parsed.
func (t *Tracker) LastActivity(ctx context.Context, user string) (at time.Time, ok bool, err error) {
	if user == "" {
		return time.Time{}, false, nil
	}
	raw, err := t.store.Get(ctx, t.activityKey(user))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	at, err = time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

func (t *Tracker) onlineKey(user string) string {
	return t.keys.Key(kv.CategoryOnline, kv.EscapeID(user))
}

func (t *Tracker) activityKey(user string) string {
	return t.keys.Key(kv.CategoryActivity, kv.EscapeID(user))
}
