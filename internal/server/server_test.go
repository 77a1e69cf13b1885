package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/kv/kvtest"
	"github.com/MrEthical07/goSession/password"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type harness struct {
	srv    *Server
	engine *goSession.Engine
	clock  *kvtest.Clock
	logs   *observer.ObservedLogs
}

func newHarness(t *testing.T, mutate ...func(*config.AppConfig)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.Redis.Host = ""
	cfg.Activity.Async = false
	cfg.LoginLimit = config.RateLimitConfig{Limit: 3, Window: time.Minute}
	cfg.Token.TTL = time.Hour
	for _, fn := range mutate {
		fn(&cfg)
	}

	clock := kvtest.NewClock()
	engine, err := goSession.New().
		WithConfig(cfg.EngineConfig()).
		WithClock(clock.Now).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	users, err := NewDirectoryFromConfig(hasher, []config.UserConfig{
		{Username: "alice", Password: "correct-horse-battery"},
	})
	if err != nil {
		t.Fatalf("directory: %v", err)
	}

	core, logs := observer.New(zap.InfoLevel)
	return &harness{
		srv:    New(&cfg, engine, users, zap.New(core)),
		engine: engine,
		clock:  clock,
		logs:   logs,
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(t *testing.T, user, pass string) loginResponse {
	t.Helper()

	rec := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": user, "password": pass})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthReportsFallback(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "healthy" || body["backend"] != "memory" || body["remote"] != false {
		t.Fatalf("unexpected health body %v", body)
	}
	if body["fallback_reason"] != "no remote backend configured" {
		t.Fatalf("unexpected fallback reason %v", body["fallback_reason"])
	}
}

func TestLoginMeAndPresence(t *testing.T) {
	h := newHarness(t)

	resp := h.login(t, "alice", "correct-horse-battery")
	if resp.TokenType != "bearer" || resp.ExpiresIn != 3600 || resp.SessionID == "" {
		t.Fatalf("unexpected login response %+v", resp)
	}

	rec := h.do(t, http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	if got := decode(t, rec)["username"]; got != "alice" {
		t.Fatalf("expected alice, got %v", got)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/presence/alice", resp.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("presence: expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["online"] != true {
		t.Fatalf("expected alice online, got %v", body)
	}
	if _, ok := body["last_activity"]; !ok {
		t.Fatalf("expected last_activity, got %v", body)
	}

	sess, err := h.engine.GetSession(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if sess.UserID != "alice" {
		t.Fatalf("unexpected session owner %q", sess.UserID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, func(c *config.AppConfig) { c.LoginLimit.Limit = 10 })

	rec := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	rec = h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "mallory", "password": "whatever-pass"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rec.Code)
	}
	rec = h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing password, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		rec := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "correct-horse-battery"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	resp := h.login(t, "alice", "correct-horse-battery")

	rec := h.do(t, http.MethodPost, "/api/v1/auth/logout", resp.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", rec.Code)
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	h := newHarness(t)
	resp := h.login(t, "alice", "correct-horse-battery")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	req.Header.Set(sessionHeader, resp.SessionID)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	if _, err := h.engine.GetSession(context.Background(), resp.SessionID); !errors.Is(err, goSession.ErrSessionNotFound) {
		t.Fatalf("expected session deleted, got %v", err)
	}
}

func TestLogoutKeepsForeignSession(t *testing.T) {
	h := newHarness(t)
	resp := h.login(t, "alice", "correct-horse-battery")

	bob, err := h.engine.MintToken("bob", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	for name, token := range map[string]string{"garbage bearer": "garbage", "other user": bob} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(sessionHeader, resp.SessionID)
		rec := httptest.NewRecorder()
		h.srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s: expected 204, got %d", name, rec.Code)
		}

		sess, err := h.engine.GetSession(context.Background(), resp.SessionID)
		if err != nil {
			t.Fatalf("%s: expected alice's session kept, got %v", name, err)
		}
		if sess.UserID != "alice" {
			t.Fatalf("%s: unexpected session owner %q", name, sess.UserID)
		}
	}
}

func TestMeRequiresBearer(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate header, got %v", rec.Header())
	}

	rec = h.do(t, http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	h := newHarness(t)
	resp := h.login(t, "alice", "correct-horse-battery")

	h.clock.Advance(time.Hour)
	rec := h.do(t, http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected expired token to be rejected, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "correct-horse-battery")

	rec := h.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "gosession_token_minted_total 1") {
		t.Fatalf("expected minted counter, got:\n%s", body)
	}
	if !strings.Contains(body, `gosession_backend_info{name="memory",remote="0"} 1`) {
		t.Fatalf("expected backend info, got:\n%s", body)
	}
}

func TestRequestLoggerRecordsUser(t *testing.T) {
	h := newHarness(t)
	resp := h.login(t, "alice", "correct-horse-battery")
	h.do(t, http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)

	entries := h.logs.FilterMessage("request").FilterField(zap.String("path", "/api/v1/auth/me")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log for /me, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user"]; got != "alice" {
		t.Fatalf("expected user field alice, got %v", got)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	h := newHarness(t, func(c *config.AppConfig) {
		c.AllowedOrigins = []string{"http://localhost:5173"}
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed for listed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got %d", rec.Code)
	}
}

func TestCORSAnyOriginWithoutCredentials(t *testing.T) {
	h := newHarness(t, func(c *config.AppConfig) {
		c.AllowedOrigins = nil
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected any origin allowed, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatal("expected Access-Control-Allow-Origin set")
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("expected no credentials for open origin policy, got %q", got)
	}
}

func TestDirectory(t *testing.T) {
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	d, err := NewDirectory(hasher)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}

	if err := d.Add("bob", "bob-password-1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := d.Add("bob", "other-password"); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
	if err := d.AddHash("  ", "x"); err == nil {
		t.Fatal("expected empty username to be rejected")
	}

	if ok, err := d.Verify("bob", "bob-password-1"); err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	if ok, _ := d.Verify("bob", "wrong-password"); ok {
		t.Fatal("expected mismatch")
	}
	if ok, err := d.Verify("nobody", "bob-password-1"); ok || err != nil {
		t.Fatalf("expected unknown user to fail cleanly, got %v %v", ok, err)
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", d.Len())
	}
}
