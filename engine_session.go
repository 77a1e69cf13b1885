package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/session"
)

// CreateSession stores a new session for userID with a random id and a
// lifetime of Session.TTL.
func (e *Engine) CreateSession(ctx context.Context, userID string, data map[string]any) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrEmptyUser
	}

	sess, err := e.sessions.Create(ctx, userID, data, e.config.Session.TTL)
	if err != nil {
		return nil, e.writeFailed("create_session", err)
	}
	e.metricInc(MetricSessionCreated)
	return fromStored(sess), nil
}

// GetSession loads a session. Absent, expired and (under fail-open)
// unreachable sessions all return ErrSessionNotFound.
func (e *Engine) GetSession(ctx context.Context, id string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		if err := e.degrade("get_session", err); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}
	return fromStored(sess), nil
}

// UpdateSession merges data into the session's Data, overwriting keys that
// already exist. The session keeps its remaining lifetime.
func (e *Engine) UpdateSession(ctx context.Context, id string, data map[string]any) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.sessions.Update(ctx, id, data)
	if err != nil {
		return nil, e.writeFailed("update_session", err)
	}
	return fromStored(sess), nil
}

// DeleteSession removes a session. It is idempotent.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.sessions.Delete(ctx, id); err != nil {
		return e.writeFailed("delete_session", err)
	}
	e.metricInc(MetricSessionDeleted)
	return nil
}

// RefreshSession restarts the session's lifetime at Session.TTL from now.
// It reports false when the session does not exist.
func (e *Engine) RefreshSession(ctx context.Context, id string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}

	ok, err := e.sessions.Refresh(ctx, id, e.config.Session.TTL)
	if err != nil {
		return false, e.writeFailed("refresh_session", err)
	}
	return ok, nil
}

func fromStored(s *session.Session) *Session {
	return &Session{
		ID:        s.ID,
		UserID:    s.UserID,
		Data:      s.Data,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
