package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for history database tracing
type DBTracingConfig struct {
	DBSystem        string        // sqlite, postgres
	SlowQueryThresh time.Duration // default: 200ms
	// WithVariables includes bound query values in span statements
	WithVariables  bool
	TracerProvider trace.TracerProvider // default: the global provider
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// InstrumentDB adds otelgorm spans to db and annotates them with the table,
// affected rows, errors and slow queries.
func InstrumentDB(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	a := &queryAnnotator{slowQueryThresh: cfg.SlowQueryThresh}
	cb := db.Callback()
	registrations := []error{
		cb.Create().Before("gorm:create").Register("history_tracing:before_create", a.before),
		cb.Query().Before("gorm:query").Register("history_tracing:before_query", a.before),
		cb.Update().Before("gorm:update").Register("history_tracing:before_update", a.before),
		cb.Create().After("gorm:create").Register("history_tracing:after_create", a.after),
		cb.Query().After("gorm:query").Register("history_tracing:after_query", a.after),
		cb.Update().After("gorm:update").Register("history_tracing:after_update", a.after),
	}
	if err := errors.Join(registrations...); err != nil {
		return err
	}

	logger.Info("History database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

type queryAnnotator struct {
	slowQueryThresh time.Duration
}

func (a *queryAnnotator) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

func (a *queryAnnotator) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > a.slowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", a.slowQueryThresh.Milliseconds()),
		))
	}
}
