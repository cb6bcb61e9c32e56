package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// HistoryLogger writes the run history store's SQL activity to zap. Queries
// carry the run id and module of the context that issued them.
type HistoryLogger struct {
	logger    *zap.Logger
	level     gormlogger.LogLevel
	slowQuery time.Duration
}

var _ gormlogger.Interface = (*HistoryLogger)(nil)

// HistoryLoggerOption configures a HistoryLogger
type HistoryLoggerOption func(*HistoryLogger)

// WithSlowQuery sets the duration above which a query is reported as slow.
// Zero disables slow query reports.
func WithSlowQuery(d time.Duration) HistoryLoggerOption {
	return func(l *HistoryLogger) {
		l.slowQuery = d
	}
}

// NewHistoryLogger returns a GORM logger named "history"
func NewHistoryLogger(zl *zap.Logger, level gormlogger.LogLevel, opts ...HistoryLoggerOption) *HistoryLogger {
	l := &HistoryLogger{
		logger:    zl.Named("history"),
		level:     level,
		slowQuery: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *HistoryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	out := *l
	out.level = level
	return &out
}

func (l *HistoryLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *HistoryLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *HistoryLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *HistoryLogger) printf(ctx context.Context, need gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < need {
		return
	}
	if ce := l.logger.Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write(runFields(ctx)...)
	}
}

// Trace reports failed and slow statements, and every statement at the
// info level. Missing rows are not failures for the history store.
func (l *HistoryLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	slow := l.slowQuery > 0 && elapsed > l.slowQuery

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case failed && l.level >= gormlogger.Error:
		lvl, msg = zapcore.ErrorLevel, "History query failed"
	case slow && l.level >= gormlogger.Warn:
		lvl, msg = zapcore.WarnLevel, "Slow history query"
	case l.level >= gormlogger.Info:
		lvl, msg = zapcore.DebugLevel, "History query"
	default:
		return
	}

	ce := l.logger.Check(lvl, msg)
	if ce == nil {
		return
	}
	sql, rows := fc()
	fields := append(runFields(ctx),
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
	)
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if slow {
		fields = append(fields, zap.Duration("threshold", l.slowQuery))
	}
	if failed {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func runFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if module := GetModule(ctx); module != "" {
		fields = append(fields, zap.String("module", module))
	}
	return fields
}

// HistoryLogLevel parses the history.log_level setting. Unknown values
// fall back to warn.
func HistoryLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
