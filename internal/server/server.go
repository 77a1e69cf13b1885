// Package server exposes the engine over HTTP: login, logout, identity,
// presence lookups, health and metrics.
package server

import (
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const loginScope = "login"

// Server holds the dependencies shared by every handler.
type Server struct {
	cfg     *config.AppConfig
	engine  *goSession.Engine
	users   *Directory
	logger  *zap.Logger
	metrics *promexport.PrometheusExporter
	router  *gin.Engine
}

// New wires the router. cfg, engine and users must be non-nil.
func New(cfg *config.AppConfig, engine *goSession.Engine, users *Directory, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		users:   users,
		logger:  logger,
		metrics: promexport.NewPrometheusExporter(engine),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	s.routes(r)
	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/logout", s.logout)
	auth.GET("/me", s.requireAuth(), s.me)

	api.GET("/presence/:user", s.requireAuth(), s.presence)
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if user, ok := c.Get(userKey); ok {
			fields = append(fields, zap.Any("user", user))
		}
		log.Info("request", fields...)
	}
}

// corsConfig allows the listed origins; "*" or an empty list allows any.
// Credentialed requests are only allowed for an explicit origin list.
func corsConfig(origins []string) cors.Config {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := len(origins) == 0
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowAll {
				return true
			}
			_, ok := allowed[strings.TrimRight(origin, "/")]
			return ok
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Session-ID"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}
}
