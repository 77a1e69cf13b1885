// Package config loads the sessiond service configuration from YAML and
// the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort      = 8000
	defaultEnv       = "development"
	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
)

// AppConfig is the full service configuration.
type AppConfig struct {
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	Env            string   `yaml:"env" validate:"oneof=development production"`
	SecretKey      string   `yaml:"secret_key" validate:"min=32"`
	KeyPrefix      string   `yaml:"key_prefix" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// FallbackSweep enables periodic eviction in the in-process store.
	FallbackSweep time.Duration `yaml:"fallback_sweep_interval" validate:"min=0"`

	Redis        RedisConfig        `yaml:"redis"`
	Token        TokenConfig        `yaml:"token"`
	Availability AvailabilityConfig `yaml:"availability"`
	Presence     PresenceConfig     `yaml:"presence"`
	Cache        CacheConfig        `yaml:"cache"`
	Session      SessionConfig      `yaml:"session"`
	LoginLimit   RateLimitConfig    `yaml:"login_rate_limit"`
	Activity     ActivityConfig     `yaml:"activity"`

	// Users seeds the in-memory user directory. Each entry carries either
	// an Argon2id PHC hash or a plaintext password hashed at startup.
	Users []UserConfig `yaml:"users" validate:"dive"`
}

// RedisConfig selects the networked backend. URL wins over the discrete
// fields; an empty Host with no URL disables the remote backend.
type RedisConfig struct {
	URL         string        `yaml:"url"`
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port" validate:"min=1,max=65535"`
	DB          int           `yaml:"db" validate:"min=0"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TLS         bool          `yaml:"tls"`
	DialTimeout time.Duration `yaml:"dial_timeout" validate:"gt=0"`
	OpTimeout   time.Duration `yaml:"op_timeout" validate:"gt=0"`
}

type TokenConfig struct {
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	SigningMethod string        `yaml:"signing_method" validate:"oneof=hs256 hs384 hs512"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
}

type AvailabilityConfig struct {
	FailOpen bool `yaml:"fail_open"`
}

type PresenceConfig struct {
	OnlineTTL   time.Duration `yaml:"online_ttl" validate:"gt=0"`
	ActivityTTL time.Duration `yaml:"activity_ttl" validate:"gt=0"`
}

type CacheConfig struct {
	TTL               time.Duration `yaml:"ttl" validate:"gt=0"`
	Encoding          string        `yaml:"encoding" validate:"oneof=json cbor"`
	CompressThreshold int           `yaml:"compress_threshold" validate:"min=0"`
}

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" validate:"gt=0"`
}

type RateLimitConfig struct {
	Limit  int           `yaml:"limit" validate:"min=1"`
	Window time.Duration `yaml:"window" validate:"gt=0"`
}

type ActivityConfig struct {
	LogTTL     time.Duration `yaml:"log_ttl" validate:"gt=0"`
	Async      bool          `yaml:"async"`
	BufferSize int           `yaml:"buffer_size" validate:"min=1"`
	DropIfFull bool          `yaml:"drop_if_full"`
	Workers    int           `yaml:"workers" validate:"min=1"`
}

type UserConfig struct {
	Username     string `yaml:"username" validate:"required"`
	Password     string `yaml:"password" validate:"required_without=PasswordHash"`
	PasswordHash string `yaml:"password_hash" validate:"required_without=Password"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	lib := goSession.DefaultConfig()
	return AppConfig{
		Port:      defaultPort,
		Env:       defaultEnv,
		KeyPrefix: lib.KeyPrefix,
		Redis: RedisConfig{
			Host:        defaultRedisHost,
			Port:        defaultRedisPort,
			DialTimeout: lib.Backend.DialTimeout,
			OpTimeout:   lib.Backend.OpTimeout,
		},
		Token: TokenConfig{
			TTL:           lib.Token.DefaultTTL,
			SigningMethod: lib.Token.SigningMethod,
		},
		Availability: AvailabilityConfig{FailOpen: lib.Availability.FailOpen},
		Presence: PresenceConfig{
			OnlineTTL:   lib.Presence.OnlineTTL,
			ActivityTTL: lib.Presence.ActivityTTL,
		},
		Cache: CacheConfig{
			TTL:               lib.Cache.DefaultTTL,
			Encoding:          lib.Cache.Encoding,
			CompressThreshold: lib.Cache.CompressThreshold,
		},
		Session: SessionConfig{TTL: lib.Session.TTL},
		LoginLimit: RateLimitConfig{
			Limit:  lib.RateLimit.DefaultLimit,
			Window: lib.RateLimit.DefaultWindow,
		},
		Activity: ActivityConfig{
			LogTTL:     lib.Activity.LogTTL,
			Async:      lib.Activity.Async,
			BufferSize: lib.Activity.BufferSize,
			DropIfFull: lib.Activity.DropIfFull,
			Workers:    lib.Activity.Workers,
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*AppConfig, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*AppConfig, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays REDIS_URL, REDIS_HOST, REDIS_PORT, REDIS_DB,
// SECRET_KEY, CORS_ORIGINS and PORT.
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str("REDIS_URL", &cfg.Redis.URL)
	str("REDIS_HOST", &cfg.Redis.Host)
	str("SECRET_KEY", &cfg.SecretKey)
	if err := num("REDIS_PORT", &cfg.Redis.Port); err != nil {
		return err
	}
	if err := num("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}
	if err := num("PORT", &cfg.Port); err != nil {
		return err
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks field constraints and reports every violation.
func (c *AppConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// IsDev reports whether the service runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env != "production"
}

// Addr returns the listen address.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RedisURL returns the URL handed to the backend selector, or "" when no
// remote backend is configured.
func (c *AppConfig) RedisURL() string {
	if c.Redis.URL != "" {
		return c.Redis.URL
	}
	if c.Redis.Host == "" {
		return ""
	}

	u := neturl.URL{
		Scheme: "redis",
		Host:   net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port)),
		Path:   "/" + strconv.Itoa(c.Redis.DB),
	}
	if c.Redis.TLS {
		u.Scheme = "rediss"
	}
	switch {
	case c.Redis.Username != "":
		u.User = neturl.UserPassword(c.Redis.Username, c.Redis.Password)
	case c.Redis.Password != "":
		u.User = neturl.UserPassword("", c.Redis.Password)
	}
	return u.String()
}

// EngineConfig maps the service configuration onto the library's.
func (c *AppConfig) EngineConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.KeyPrefix = c.KeyPrefix
	cfg.Token.Secret = []byte(c.SecretKey)
	cfg.Token.DefaultTTL = c.Token.TTL
	cfg.Token.SigningMethod = c.Token.SigningMethod
	cfg.Token.Issuer = c.Token.Issuer
	cfg.Token.Audience = c.Token.Audience
	cfg.Backend.RedisURL = c.RedisURL()
	cfg.Backend.DialTimeout = c.Redis.DialTimeout
	cfg.Backend.OpTimeout = c.Redis.OpTimeout
	cfg.Backend.SweepInterval = c.FallbackSweep
	cfg.Availability.FailOpen = c.Availability.FailOpen
	cfg.Presence.OnlineTTL = c.Presence.OnlineTTL
	cfg.Presence.ActivityTTL = c.Presence.ActivityTTL
	cfg.Cache.DefaultTTL = c.Cache.TTL
	cfg.Cache.Encoding = c.Cache.Encoding
	cfg.Cache.CompressThreshold = c.Cache.CompressThreshold
	cfg.Session.TTL = c.Session.TTL
	cfg.RateLimit.DefaultLimit = c.LoginLimit.Limit
	cfg.RateLimit.DefaultWindow = c.LoginLimit.Window
	cfg.Activity.LogTTL = c.Activity.LogTTL
	cfg.Activity.Async = c.Activity.Async
	cfg.Activity.BufferSize = c.Activity.BufferSize
	cfg.Activity.DropIfFull = c.Activity.DropIfFull
	cfg.Activity.Workers = c.Activity.Workers
	return cfg
}
