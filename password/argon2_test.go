package password

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// fastConfig keeps the cost at the accepted minimum so tests stay quick.
func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	hasher := newHasher(t, fastConfig())

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password rejected, ok=%v err=%v", ok, err)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	hasher := newHasher(t, fastConfig())

	a, _ := hasher.Hash("same-password")
	b, _ := hasher.Hash("same-password")
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestVerifyAcceptsPaddedEncoding(t *testing.T) {
	hasher := newHasher(t, fastConfig())

	hash, _ := hasher.Hash("padded-password")
	parts := strings.Split(hash, "$")
	salt, _ := base64.RawStdEncoding.DecodeString(parts[4])
	sum, _ := base64.RawStdEncoding.DecodeString(parts[5])
	parts[4] = base64.StdEncoding.EncodeToString(salt)
	parts[5] = base64.StdEncoding.EncodeToString(sum)

	ok, err := hasher.Verify("padded-password", strings.Join(parts, "$"))
	if err != nil || !ok {
		t.Fatalf("expected padded hash to verify, ok=%v err=%v", ok, err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newHasher(t, fastConfig())
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	needsUpgrade, err := newHasher(t, stronger).NeedsUpgrade(hash)
	if err != nil || !needsUpgrade {
		t.Fatalf("expected upgrade for weaker parameters, got %v err=%v", needsUpgrade, err)
	}

	needsUpgrade, err = oldHasher.NeedsUpgrade(hash)
	if err != nil || needsUpgrade {
		t.Fatalf("expected no upgrade for current parameters, got %v err=%v", needsUpgrade, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	hash, _ := hasher.Hash("version-test")

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"wrong alg":     strings.Replace(hash, "$argon2id$", "$argon2i$", 1),
		"wrong version": strings.Replace(hash, "$v=19$", "$v=18$", 1),
		"weak memory":   strings.Replace(hash, "m=8192", "m=1024", 1),
		"extra param":   strings.Replace(hash, "p=1", "p=1,x=2", 1),
	}
	for name, encoded := range cases {
		if _, err := hasher.Verify("version-test", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: expected ErrMalformedHash, got %v", name, err)
		}
	}
}

func TestPasswordLengthBounds(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 64
	hasher := newHasher(t, cfg)

	if _, err := hasher.Hash(""); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort for empty, got %v", err)
	}
	if _, err := hasher.Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("expected max-length password accepted: %v", err)
	}
	if ok, err := hasher.Verify(exact, hash); err != nil || !ok {
		t.Fatalf("Verify failed for max-length password: ok=%v err=%v", ok, err)
	}
	if _, err := hasher.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected Verify to reject long input, got %v", err)
	}
}

func TestDefaultMaxPasswordBytesApplied(t *testing.T) {
	hasher := newHasher(t, fastConfig())

	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected password > %d bytes rejected, got %v", DefaultMaxPasswordBytes, err)
	}
	if _, err := hasher.Hash(strings.Repeat("e", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("expected password of exactly %d bytes accepted: %v", DefaultMaxPasswordBytes, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"max bytes":   func(c *Config) { c.MaxPasswordBytes = 4 },
	}
	for name, mutate := range cases {
		cfg := fastConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
