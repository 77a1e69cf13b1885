package goSession

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/kv"
	"go.uber.org/zap"
)

// MintToken signs a credential for subject that expires ttl from now.
// ttl == 0 selects Token.DefaultTTL; a negative ttl is rejected.
//
// Every credential carries a fresh random jti. Minting performs no store
// I/O.
func (e *Engine) MintToken(subject string, ttl time.Duration) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if subject == "" {
		return "", ErrEmptyUser
	}
	if ttl == 0 {
		ttl = e.config.Token.DefaultTTL
	}
	if ttl < 0 {
		return "", ErrInvalidTTL
	}

	token, _, err := e.jwt.Mint(subject, ttl)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricTokenMinted)
	return token, nil
}

// ValidateToken verifies the credential and checks the revocation list.
//
// Malformed input, a bad signature, expiry and revocation all return
// ErrAuthenticationFailed. When the revocation check cannot reach the
// backend, the availability policy decides: fail-open accepts the
// credential, fail-closed returns ErrBackendUnavailable.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	parsed, err := e.jwt.Parse(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, ErrAuthenticationFailed
	}

	revoked, err := e.store.Exists(ctx, e.blacklistKey(parsed.ID))
	if err := e.degrade("validate_token", err); err != nil {
		return nil, err
	}
	if revoked {
		e.metricInc(MetricBlacklistHit)
		e.metricInc(MetricTokenRejected)
		return nil, ErrAuthenticationFailed
	}

	e.metricInc(MetricTokenValidated)
	return &Claims{
		Subject:   parsed.Subject,
		TokenID:   parsed.ID,
		IssuedAt:  parsed.Issued(),
		ExpiresAt: parsed.Expiry(),
	}, nil
}

// Authenticate validates the credential and, on success, marks the subject
// online and records its activity. The presence writes are best-effort:
// their failure is logged and does not fail authentication.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := e.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := e.SetOnline(ctx, claims.Subject); err != nil {
		e.logger.Debug("presence refresh failed", zap.String("user", claims.Subject), zap.Error(err))
	}
	if err := e.TouchActivity(ctx, claims.Subject); err != nil {
		e.logger.Debug("activity touch failed", zap.String("user", claims.Subject), zap.Error(err))
	}
	return claims, nil
}

// RevokeToken blacklists the credential's jti for the rest of the time
// ValidateToken would accept it (remaining lifetime plus Token.Leeway) and
// marks its subject offline.
//
// The signature is verified but expiry is not, so a credential about to
// expire is still revocable. An undecodable or already expired credential
// is a successful no-op. Only a failed blacklist write is reported.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwt.Decode(token)
	if err != nil {
		e.metricInc(MetricRevokeNoop)
		return nil
	}

	if remaining := claims.Expiry().Add(e.jwt.Leeway()).Sub(e.now()); remaining > 0 {
		exp := strconv.FormatInt(claims.Expiry().Unix(), 10)
		if err := e.store.Put(ctx, e.blacklistKey(claims.ID), []byte(exp), remaining); err != nil {
			return e.writeFailed("revoke_token", err)
		}
		e.metricInc(MetricTokenRevoked)
	} else {
		e.metricInc(MetricRevokeNoop)
	}

	if err := e.presence.SetOffline(ctx, claims.Subject); err != nil {
		e.logger.Debug("mark offline on revoke failed", zap.String("user", claims.Subject), zap.Error(err))
	}
	return nil
}

// DecodeToken verifies the credential's signature and returns its claims
// without checking expiry or the revocation list. It is meant for
// housekeeping on credentials that may already be expired, such as logout.
func (e *Engine) DecodeToken(token string) (*Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	parsed, err := e.jwt.Decode(token)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return &Claims{
		Subject:   parsed.Subject,
		TokenID:   parsed.ID,
		IssuedAt:  parsed.Issued(),
		ExpiresAt: parsed.Expiry(),
	}, nil
}

// IsBlacklisted reports whether jti has been revoked and its credential
// has not yet expired.
func (e *Engine) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	if jti == "" {
		return false, nil
	}

	ok, err := e.store.Exists(ctx, e.blacklistKey(jti))
	if err != nil {
		return false, e.degrade("is_blacklisted", err)
	}
	return ok, nil
}

func (e *Engine) blacklistKey(jti string) string {
	return e.keys.Key(kv.CategoryBlacklist, jti)
}
