// Command sessiond serves the session engine over HTTP.
//
// Configuration comes from an optional YAML file (--config) overlaid with
// REDIS_URL, REDIS_HOST, REDIS_PORT, REDIS_DB, SECRET_KEY, CORS_ORIGINS
// and PORT. When Redis cannot be reached at startup the service runs on
// the in-process store and reports the reason on /health.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/server"
	"github.com/MrEthical07/goSession/password"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		port       int
		seedDemo   bool
	)

	flagSet := pflag.NewFlagSet("sessiond", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	flagSet.IntVar(&port, "port", 0, "listen port (overrides config and PORT)")
	flagSet.BoolVar(&seedDemo, "seed-demo-user", false, "add user demo/demo-password when the directory is empty")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+time.Second)
	engine, err := goSession.New().
		WithConfig(cfg.EngineConfig()).
		WithLogger(logger).
		Build(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	info := engine.Backend()
	logger.Info("backend selected",
		zap.String("backend", info.Name),
		zap.Bool("remote", info.Remote),
		zap.String("fallback_reason", info.FallbackReason),
	)

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	users, err := server.NewDirectoryFromConfig(hasher, cfg.Users)
	if err != nil {
		return err
	}
	if users.Len() == 0 && seedDemo {
		if err := users.Add("demo", "demo-password"); err != nil {
			return err
		}
		logger.Warn("seeded demo user", zap.String("username", "demo"))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(cfg, engine, users, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
	}

	logger.Info("shutting down server...")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
