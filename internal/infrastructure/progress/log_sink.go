package progress

import (
	"go.uber.org/zap"
)

// LogSink writes tracker events to a zap logger. Item ticks are logged at
// debug level, failed ticks at warn.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging through logger
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Notify implements Sink
func (s *LogSink) Notify(e Event) {
	log := s.logger.With(zap.String("module", string(e.Module)))

	switch e.Type {
	case EventModuleStarted:
		log.Info("Module started")
	case EventProcessAdded:
		log.Debug("Process added",
			zap.String("process", e.Process.Name),
			zap.Int("total", e.Process.Total),
		)
	case EventProcessStarted:
		log.Info("Process started",
			zap.String("process", e.Process.Name),
			zap.String("label", e.Label),
			zap.Int("total", e.Process.Total),
		)
	case EventItemTicked:
		fields := []zap.Field{
			zap.String("process", e.Process.Name),
			zap.String("item", e.Label),
			zap.Int("done", e.Process.Succeeded+e.Process.Failed),
			zap.Int("total", e.Process.Total),
		}
		if e.Success {
			log.Debug("Item processed", fields...)
			return
		}
		log.Warn("Item failed", append(fields, zap.String("error", e.ErrorMsg))...)
	case EventProcessCompleted:
		log.Info("Process completed",
			zap.String("process", e.Process.Name),
			zap.Bool("success", e.Success),
			zap.Int("succeeded", e.Process.Succeeded),
			zap.Int("failed", e.Process.Failed),
		)
	case EventModuleCompleted:
		total, succeeded, failed := e.Summary.Totals()
		fields := []zap.Field{
			zap.Bool("success", e.Success),
			zap.Int("total", total),
			zap.Int("succeeded", succeeded),
			zap.Int("failed", failed),
		}
		if e.Message != "" {
			fields = append(fields, zap.String("message", e.Message))
		}
		if e.Success {
			log.Info("Module completed", fields...)
			return
		}
		log.Error("Module failed", fields...)
	}
}
