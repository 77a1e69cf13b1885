package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/codec"
	"github.com/MrEthical07/goSession/kv"
)

// DefaultTTL is the lifetime of a session created without an explicit TTL.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned when the session is absent or expired.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("session corrupt")
	// ErrInvalidID is returned for an empty session id.
	ErrInvalidID = errors.New("invalid session id")
)

// Store persists sessions through a kv.Store.
type Store struct {
	kv    kv.Store
	keys  kv.Keyspace
	codec *codec.Codec
	now   func() time.Time
}

// NewStore creates a Store. now may be nil.
func NewStore(store kv.Store, keys kv.Keyspace, c *codec.Codec, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{kv: store, keys: keys, codec: c, now: now}
}

func (s *Store) key(sessionID string) string {
	return s.keys.Key(kv.CategorySession, sessionID)
}

// Create stores a new session with a random id. ttl <= 0 selects DefaultTTL.
func (s *Store) Create(ctx context.Context, userID string, data map[string]any, ttl time.Duration) (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:        sid,
		UserID:    userID,
		Data:      cloneData(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(ctx, sess, ttl); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save writes sess under its own id, replacing any previous record.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidID
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := s.codec.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.kv.Put(ctx, s.key(sess.ID), data, ttl)
}

// Get loads a session.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	raw, err := s.kv.Get(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess Session
	if err := s.codec.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &sess, nil
}

// Update shallow-merges data into the session and keeps its remaining
// lifetime. It returns ErrNotFound when the session is gone.
//
// Update is a read-modify-write: concurrent updates of one session may
// overwrite each other's keys.
func (s *Store) Update(ctx context.Context, sessionID string, data map[string]any) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	remaining, err := s.kv.TTL(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if sess.Data == nil && len(data) > 0 {
		sess.Data = make(map[string]any, len(data))
	}
	for k, v := range data {
		sess.Data[k] = v
	}
	sess.UpdatedAt = s.now()

	if err := s.Save(ctx, sess, remaining); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes a session. Deleting an absent session succeeds.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.kv.Delete(ctx, s.key(sessionID))
}

// Refresh restarts the session's lifetime at ttl from now. It reports false
// when the session does not exist. ttl <= 0 selects DefaultTTL.
func (s *Store) Refresh(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return s.kv.Extend(ctx, s.key(sessionID), ttl)
}
