package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	migrationapp "github.com/contentstack/cli-sub008/internal/application/migration"
	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/bulk"
	"github.com/contentstack/cli-sub008/internal/infrastructure/cma"
	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
	"github.com/contentstack/cli-sub008/internal/infrastructure/export"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
	"github.com/contentstack/cli-sub008/internal/infrastructure/progress"
	"github.com/contentstack/cli-sub008/internal/infrastructure/secrets"
	"github.com/contentstack/cli-sub008/internal/infrastructure/telemetry"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/middleware"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/router"
)

// moduleList collects repeated -module flags
type moduleList []string

func (m *moduleList) String() string { return strings.Join(*m, ",") }

func (m *moduleList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*m = append(*m, part)
		}
	}
	return nil
}

func runCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var modules moduleList
	fs.Var(&modules, "module", "Module to import, repeatable (default: all)")
	status := fs.Bool("status", a.cfg.Status.Enabled, "Serve progress over HTTP while running")
	quiet := fs.Bool("quiet", false, "Disable console progress output")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if len(modules) == 0 {
		modules = a.cfg.Migration.Modules
	}
	kinds, err := migration.ParseEntityKinds(modules)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	reader, err := newExportReader(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	client, err := cma.NewClient(a.cfg.Target, cma.WithLogger(a.log))
	if err != nil {
		return fmt.Errorf("failed to create target client: %w", err)
	}
	keys := secrets.NewKeyResolver(
		a.cfg.Migration.EncryptionKey,
		secrets.NewLinePrompter(os.Stdin, os.Stderr),
		a.cfg.Migration.MaxKeyAttempts,
	)

	mods, err := migrationapp.BuildModules(kinds, migrationapp.Deps{
		Reader:          reader,
		API:             client,
		Keys:            keys,
		DisableWebhooks: a.cfg.Migration.DisableWebhooks,
	})
	if err != nil {
		return err
	}

	stores := mapper.NewStoreFactory(a.cfg.Migration.RunDir, a.cfg.Mapper, a.cfg.Redis, mapper.WithLogger(a.log))
	defer func() {
		if err := stores.Close(); err != nil {
			a.log.Warn("Error closing mapper store", zap.Error(err))
		}
	}()

	metrics := progress.NewMetricsSink()
	sinks := progress.MultiSink{progress.NewLogSink(a.log), metrics}
	if !*quiet {
		console := progress.DefaultConsoleConfig()
		console.UseColors = isatty.IsTerminal(os.Stdout.Fd())
		sinks = append(sinks, progress.NewConsoleSink(console))
	}
	registry := progress.NewRegistry(sinks)

	opts := []migrationapp.RunnerOption{
		migrationapp.WithLogger(a.log),
		migrationapp.WithBulkOptions(
			bulk.WithConcurrency(a.cfg.Migration.Concurrency),
			bulk.WithRateLimit(a.cfg.Migration.RateLimit, a.cfg.Migration.RateBurst),
			bulk.WithTracer(a.tracer.Tracer(telemetry.InstrumentationName)),
		),
	}
	if a.history != nil {
		opts = append(opts, migrationapp.WithHistory(a.history))
	}
	runner := migrationapp.NewRunner(stores, registry, opts...)

	if *status {
		engine := router.NewStatusEngine(router.StatusDeps{
			Version:  version,
			Progress: registry,
			History:  historyReader(a),
			Metrics:  metrics.Handler(),
			Checks:   a.healthChecks(),
			Tracing: middleware.TracingConfig{
				ServiceName: a.cfg.Telemetry.ServiceName,
				Enabled:     a.tracer.IsEnabled(),
				RunID:       runner.RunID,
			},
			Logger: a.log,
		})
		srv := router.NewServer(a.cfg.Status, engine, a.log)
		if _, err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				a.log.Warn("Status server forced to shutdown", zap.Error(err))
			}
		}()
	}

	a.log.Info("Import started",
		zap.String("run_id", runner.RunID()),
		zap.Int("modules", len(mods)),
		zap.String("source", a.cfg.Source.Type),
		zap.String("run_dir", a.cfg.Migration.RunDir),
	)
	report := runner.Run(ctx, mods...)
	printReport(os.Stdout, report)
	return report.Err()
}

// newExportReader opens the configured export source
func newExportReader(ctx context.Context, cfg *config.Config, log *zap.Logger) (export.Reader, error) {
	if cfg.Source.Type == "s3" {
		r, err := export.NewS3Reader(ctx, &cfg.Storage, export.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 export: %w", err)
		}
		return r, nil
	}
	if _, err := os.Stat(cfg.Source.DataDir); err != nil {
		return nil, fmt.Errorf("export directory %s: %w", cfg.Source.DataDir, err)
	}
	return export.NewLocalReader(cfg.Source.DataDir), nil
}
