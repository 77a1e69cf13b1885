package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userKey   = "user"
	claimsKey = "claims"

	sessionHeader = "X-Session-ID"
)

type loginRequest struct {
	Username string `json:"username" binding:"required,max=128"`
	Password string `json:"password" binding:"required,max=1024"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	SessionID   string `json:"session_id,omitempty"`
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// backendError answers 503 for an unavailable store and 500 otherwise.
func (s *Server) backendError(c *gin.Context, op string, err error) {
	if errors.Is(err, goSession.ErrBackendUnavailable) {
		abort(c, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	abort(c, http.StatusInternalServerError, "internal error")
}

func (s *Server) health(c *gin.Context) {
	info := s.engine.Backend()
	body := gin.H{
		"status":  "healthy",
		"backend": info.Name,
		"remote":  info.Remote,
	}
	if info.FallbackReason != "" {
		body["fallback_reason"] = info.FallbackReason
	}

	status := http.StatusOK
	if err := s.engine.Ping(c.Request.Context()); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}

func (s *Server) login(c *gin.Context) {
	ctx := goSession.WithClientIP(c.Request.Context(), c.ClientIP())

	res, err := s.engine.RateLimitCheck(ctx, loginScope+":"+c.ClientIP(), s.cfg.LoginLimit.Limit, s.cfg.LoginLimit.Window)
	if err != nil {
		s.backendError(c, "login rate limit", err)
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(res.RetryAfterSeconds()))
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
		abort(c, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	ok, err := s.users.Verify(req.Username, req.Password)
	if err != nil {
		s.logger.Warn("password verification failed", zap.String("user", req.Username), zap.Error(err))
	}
	if !ok {
		s.engine.LogActivity(ctx, req.Username, "login_failed", nil)
		abort(c, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	ttl := s.cfg.Token.TTL
	token, err := s.engine.MintToken(req.Username, ttl)
	if err != nil {
		s.backendError(c, "mint token", err)
		return
	}

	sess, err := s.engine.CreateSession(ctx, req.Username, map[string]any{
		"ip":         c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
	})
	if err != nil {
		// A session is optional; the token alone authenticates.
		s.logger.Warn("session create failed", zap.String("user", req.Username), zap.Error(err))
	}

	if err := s.engine.SetOnline(ctx, req.Username); err != nil {
		s.logger.Warn("presence update failed", zap.String("user", req.Username), zap.Error(err))
	}
	s.engine.LogActivity(ctx, req.Username, "login", nil)

	resp := loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(ttl / time.Second),
	}
	if sess != nil {
		resp.SessionID = sess.ID
	}
	c.JSON(http.StatusOK, resp)
}

// logout revokes the presented credential. Expired credentials are
// accepted so clients can always log out. The session named by
// X-Session-ID is deleted only when it belongs to the credential's subject.
func (s *Server) logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		abort(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx := goSession.WithClientIP(c.Request.Context(), c.ClientIP())
	if err := s.engine.RevokeToken(ctx, token); err != nil {
		s.backendError(c, "revoke", err)
		return
	}
	if id := c.GetHeader(sessionHeader); id != "" {
		s.endSession(ctx, token, id)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) endSession(ctx context.Context, token, id string) {
	claims, err := s.engine.DecodeToken(token)
	if err != nil {
		return
	}
	sess, err := s.engine.GetSession(ctx, id)
	if err != nil {
		if !errors.Is(err, goSession.ErrSessionNotFound) {
			s.logger.Warn("session lookup failed", zap.Error(err))
		}
		return
	}
	if sess.UserID != claims.Subject {
		s.logger.Warn("logout named a foreign session", zap.String("user", claims.Subject))
		return
	}
	if err := s.engine.DeleteSession(ctx, id); err != nil {
		s.logger.Warn("session delete failed", zap.Error(err))
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			abort(c, http.StatusUnauthorized, "not authenticated")
			return
		}

		ctx := goSession.WithClientIP(c.Request.Context(), c.ClientIP())
		claims, err := s.engine.Authenticate(ctx, token)
		if err != nil {
			if errors.Is(err, goSession.ErrBackendUnavailable) {
				abort(c, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			c.Header("WWW-Authenticate", "Bearer")
			abort(c, http.StatusUnauthorized, "could not validate credentials")
			return
		}

		c.Set(userKey, claims.Subject)
		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) me(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*goSession.Claims)
	c.JSON(http.StatusOK, gin.H{
		"username":   claims.Subject,
		"token_id":   claims.TokenID,
		"issued_at":  claims.IssuedAt.UTC(),
		"expires_at": claims.ExpiresAt.UTC(),
	})
}

func (s *Server) presence(c *gin.Context) {
	user := c.Param("user")
	ctx := c.Request.Context()

	online, err := s.engine.IsOnline(ctx, user)
	if err != nil {
		s.backendError(c, "is online", err)
		return
	}
	last, seen, err := s.engine.LastActivity(ctx, user)
	if err != nil {
		s.backendError(c, "last activity", err)
		return
	}

	body := gin.H{"user": user, "online": online}
	if seen {
		body["last_activity"] = last.UTC()
	}
	c.JSON(http.StatusOK, body)
}
