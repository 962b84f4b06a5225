package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	httpapi "github.com/i474232898/openweathermap-agent/internal/api/http"
	"github.com/i474232898/openweathermap-agent/internal/config"
	"github.com/i474232898/openweathermap-agent/internal/scheduler"
	"github.com/i474232898/openweathermap-agent/internal/store"
	"github.com/i474232898/openweathermap-agent/internal/weather"
	"github.com/i474232898/openweathermap-agent/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("agent stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run wires the agent and serves until SIGINT/SIGTERM. Errors are returned
// so deferred cleanup always runs.
func run(cfg *config.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SQLite when a path is configured, otherwise an in-memory store.
	var st weather.Store
	if cfg.DBPath != "" {
		db, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
		}
		defer db.Close()
		st = db
		logger.Info("using sqlite store", zap.String("path", cfg.DBPath))
	} else {
		st = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
		logger.Info("using in-memory store",
			zap.Int("max_history", cfg.StoreMaxHistory),
			zap.Duration("max_age", cfg.StoreMaxAge))
	}

	// Shared HTTP client for outbound OpenWeatherMap calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	provider := providers.NewOpenWeatherProvider(httpClient)

	// Without OWM_* settings the agent starts unconfigured and waits for
	// PUT /api/v1/agent/options.
	service := weather.NewService(cfg.AgentID, st, provider, logger)
	if err := service.LoadOptions(ctx, cfg.AgentOptions); err != nil {
		return fmt.Errorf("load agent options: %w", err)
	}

	sched := scheduler.New(cfg.CheckInterval, cfg.CheckTimeout, service, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(service)

	go func() {
		logger.Info("listening",
			zap.String("port", cfg.Port),
			zap.String("agent_id", cfg.AgentID),
			zap.Bool("configured", service.Configured()))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Warn("fiber server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
