package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the HMAC variant used to sign credentials.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256. It is the default.
	MethodHS256 SigningMethod = "hs256"
	MethodHS384 SigningMethod = "hs384"
	MethodHS512 SigningMethod = "hs512"
)

// MinSecretLength is the shortest accepted shared secret, in bytes.
const MinSecretLength = 32

const maxLeeway = 2 * time.Minute

var (
	// ErrInvalidConfig is returned by NewManager for unusable settings.
	ErrInvalidConfig = errors.New("jwt: invalid configuration")
	// ErrInvalidTTL is returned by Mint for a non-positive lifetime.
	ErrInvalidTTL = errors.New("jwt: ttl must be positive")
	// ErrMissingClaims is returned when a verified token lacks sub or jti.
	ErrMissingClaims = errors.New("jwt: token missing required claims")
)

// Config defines how credentials are signed and verified.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string

	// Now replaces time.Now for minting and expiry checks.
	Now func() time.Time
}

// Claims is the payload carried by every credential: sub, exp, iat and jti,
// plus iss/aud when configured.
//
// exp has one-second precision, so Mint rounds it up and records the exact
// deadline in exp_ns (Unix nanoseconds). Parse enforces exp_ns.
type Claims struct {
	jwt.RegisteredClaims
	ExpiresAtNano int64 `json:"exp_ns,omitempty"`
}

// Expiry returns the absolute expiry, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c == nil {
		return time.Time{}
	}
	if c.ExpiresAtNano > 0 {
		return time.Unix(0, c.ExpiresAtNano)
	}
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issue time, or the zero time when absent.
func (c *Claims) Issued() time.Time {
	if c == nil || c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// Manager mints and verifies HMAC-signed credentials.
//
// Manager is safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
}

// NewManager validates cfg and returns a Manager. An empty SigningMethod
// selects HS256.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	method, err := methodFor(cfg.SigningMethod)
	if err != nil {
		return nil, err
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrInvalidConfig, MinSecretLength)
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, fmt.Errorf("%w: leeway must be within [0, %s]", ErrInvalidConfig, maxLeeway)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg, method: method}, nil
}

// Mint signs a new credential for subject that expires ttl from now.
//
// Each call embeds a fresh random jti. The credential is valid strictly
// before now+ttl, to the nanosecond.
func (m *Manager) Mint(subject string, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, ErrInvalidTTL
	}

	now := m.config.Now()
	deadline := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(deadline)),
			Issuer:    m.config.Issuer,
		},
		ExpiresAtNano: deadline.UnixNano(),
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm, expiry and the configured issuer and
// audience. The revocation list is not consulted here.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	claims, err := m.parse(tokenStr, options...)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAtNano > 0 && !m.config.Now().Before(claims.Expiry().Add(m.config.Leeway)) {
		return nil, jwt.ErrTokenExpired
	}
	return claims, nil
}

// Leeway returns the clock-skew allowance applied to expiry.
func (m *Manager) Leeway() time.Duration {
	return m.config.Leeway
}

// Decode verifies the signature only. Expired credentials decode
// successfully, which lets a caller revoke a credential regardless of how
// close it is to expiry.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, jwt.WithoutClaimsValidation())
}

func (m *Manager) parse(tokenStr string, options ...jwt.ParserOption) (*Claims, error) {
	options = append(options, jwt.WithValidMethods([]string{m.method.Alg()}))

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

func methodFor(m SigningMethod) (jwt.SigningMethod, error) {
	switch SigningMethod(strings.ToLower(string(m))) {
	case MethodHS256:
		return jwt.SigningMethodHS256, nil
	case MethodHS384:
		return jwt.SigningMethodHS384, nil
	case MethodHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, m)
	}
}
