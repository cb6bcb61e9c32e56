package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	migrationapp "github.com/contentstack/cli-sub008/internal/application/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
	"github.com/contentstack/cli-sub008/internal/infrastructure/logger"
	"github.com/contentstack/cli-sub008/internal/infrastructure/persistence"
	"github.com/contentstack/cli-sub008/internal/infrastructure/telemetry"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/handler"
)

// app holds the collaborators shared by every command
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	tracer  *telemetry.TracerProvider
	db      *persistence.Database
	history *migrationapp.HistoryService
}

func newApp(configPath, logLevel string) (*app, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	a.tracer, err = telemetry.NewTracerProvider(context.Background(), telemetry.FromConfig(cfg, version), log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.History.Enabled {
		a.db, err = persistence.NewDatabase(&cfg.History, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		if a.tracer.IsEnabled() {
			err = telemetry.InstrumentDB(a.db.DB, telemetry.DBTracingConfig{DBSystem: cfg.History.Driver}, log)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to trace run history: %w", err)
			}
		}
		a.history = migrationapp.NewHistoryService(persistence.NewGormRunHistoryRepository(a.db.DB))
	}
	return a, nil
}

// healthChecks are the backing services pinged by /healthz
func (a *app) healthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{}
	if a.db != nil {
		checks["history"] = handler.PingFunc(func(context.Context) error { return a.db.Ping() })
	}
	return checks
}

// Close releases everything newApp opened
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("Error closing history database", zap.Error(err))
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.Warn("Error flushing traces", zap.Error(err))
		}
		cancel()
	}
	_ = a.log.Sync()
}
