package migrationapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/bulk"
	"github.com/contentstack/cli-sub008/internal/infrastructure/logger"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
	"github.com/contentstack/cli-sub008/internal/infrastructure/progress"
	"github.com/contentstack/cli-sub008/internal/infrastructure/telemetry"
)

// Module imports one entity kind
type Module interface {
	Kind() migration.EntityKind

	// Analyze counts the items to import. Zero skips the module entirely.
	Analyze(ctx context.Context) (int, error)

	// Import runs the module phases against a prepared session
	Import(ctx context.Context, s *Session) error
}

// StoreOpener opens the identifier map stores of a run
type StoreOpener interface {
	MappingReader
	SubStoreOpener
	Layout(kind migration.EntityKind) mapper.Layout
	Open(ctx context.Context, kind migration.EntityKind) (mapper.Store, error)
}

var _ StoreOpener = (*mapper.StoreFactory)(nil)

// ModuleStatus is the outcome of one module in a run
type ModuleStatus string

const (
	ModuleCompleted ModuleStatus = "completed"
	ModuleSkipped   ModuleStatus = "skipped"
	ModuleFailed    ModuleStatus = "failed"
)

// ModuleResult reports one module of a run
type ModuleResult struct {
	Kind      migration.EntityKind
	Status    ModuleStatus
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
	Err       error
}

// Report is the outcome of Runner.Run
type Report struct {
	RunID   string
	Modules []ModuleResult
}

// Err joins the errors of failed modules
func (r *Report) Err() error {
	var errs []error
	for _, m := range r.Modules {
		if m.Status == ModuleFailed {
			errs = append(errs, fmt.Errorf("%s: %w", m.Kind, m.Err))
		}
	}
	return errors.Join(errs...)
}

// Runner drives modules through analysis, resume state and import.
// Module failures are contained: the next module always runs.
type Runner struct {
	stores      StoreOpener
	registry    *progress.Registry
	history     *HistoryService
	logger      *zap.Logger
	bulkOptions []bulk.Option
	runID       string
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithHistory records each module run
func WithHistory(history *HistoryService) RunnerOption {
	return func(r *Runner) {
		r.history = history
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithBulkOptions applies executor options to every phase
func WithBulkOptions(opts ...bulk.Option) RunnerOption {
	return func(r *Runner) {
		r.bulkOptions = append(r.bulkOptions, opts...)
	}
}

// WithRunID sets the run id instead of generating one
func WithRunID(runID string) RunnerOption {
	return func(r *Runner) {
		r.runID = runID
	}
}

// NewRunner creates a new Runner
func NewRunner(stores StoreOpener, registry *progress.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		stores:   stores,
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.New().String()
	}
	registry.SetRunID(r.runID)
	return r
}

// RunID returns the id of the run
func (r *Runner) RunID() string {
	return r.runID
}

// Run imports modules in order. It stops launching modules once ctx is done.
func (r *Runner) Run(ctx context.Context, modules ...Module) *Report {
	ctx, log := logger.WithRunID(ctx, r.logger, r.runID)
	report := &Report{RunID: r.runID}

	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			report.Modules = append(report.Modules, ModuleResult{
				Kind:   m.Kind(),
				Status: ModuleFailed,
				Err:    err,
			})
			continue
		}
		report.Modules = append(report.Modules, r.runModule(ctx, log, m))
	}
	return report
}

func (r *Runner) runModule(ctx context.Context, log *zap.Logger, m Module) (result ModuleResult) {
	kind := m.Kind()
	ctx, log = logger.WithModule(ctx, log, kind.String())
	ctx, span := telemetry.StartSpan(ctx, "migration.module",
		telemetry.WithAttribute("module", kind),
		telemetry.WithAttribute("run_id", r.runID),
	)
	start := time.Now()
	result = ModuleResult{Kind: kind}
	defer func() {
		result.Duration = time.Since(start)
		telemetry.SetAttributes(span,
			"status", string(result.Status),
			"total", result.Total,
			"succeeded", result.Succeeded,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
		if result.Err != nil {
			telemetry.RecordError(span, result.Err)
		} else {
			telemetry.SetOK(span)
		}
		span.End()
	}()

	total, err := m.Analyze(ctx)
	if err != nil {
		log.Error("Module analysis failed", zap.Error(err))
		tracker := r.registry.NewTracker(kind)
		_ = tracker.CompleteProgress(false, err.Error())
		result.Status = ModuleFailed
		result.Err = err
		return result
	}
	result.Total = total
	if total == 0 {
		log.Info("Nothing to import")
		result.Status = ModuleSkipped
		return result
	}

	s, err := r.prepareResumeState(ctx, log, kind)
	if err != nil {
		log.Error("Failed to prepare resume state", zap.Error(err))
		tracker := r.registry.NewTracker(kind)
		_ = tracker.CompleteProgress(false, err.Error())
		result.Status = ModuleFailed
		result.Err = err
		return result
	}
	defer func() {
		if cerr := s.IDs.Close(); cerr != nil {
			log.Warn("Failed to close identifier map", zap.Error(cerr))
		}
	}()

	history := r.startHistory(ctx, log, kind, total)

	err = r.importModule(ctx, m, s)
	if ferr := flushLedger(s.Ledger, err); ferr != nil {
		log.Error("Failed to write ledgers", zap.Error(ferr))
		if err == nil {
			err = ferr
		}
	}

	counts := s.Counts()
	result.Succeeded = counts.Success
	result.Skipped = counts.Skipped
	result.Failed = counts.Failed

	if err != nil {
		log.Error("Module failed", zap.Error(err))
		_ = s.Tracker.CompleteProgress(false, err.Error())
		result.Status = ModuleFailed
		result.Err = err
	} else {
		_ = s.Tracker.CompleteProgress(true, "")
		result.Status = ModuleCompleted
	}
	r.finishHistory(ctx, log, history, result)
	return result
}

// flushLedger clears stale failures only when the module finished
func flushLedger(l *mapper.Ledger, importErr error) error {
	if importErr != nil {
		return l.FlushPartial()
	}
	return l.Flush()
}

// importModule contains panics raised by the module
func (r *Runner) importModule(ctx context.Context, m Module, s *Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("module panicked: %v", rec)
		}
	}()
	return m.Import(ctx, s)
}

// prepareResumeState creates the mapper directory and loads the identifier
// map so already-imported items are skipped.
func (r *Runner) prepareResumeState(ctx context.Context, log *zap.Logger, kind migration.EntityKind) (*Session, error) {
	layout := r.stores.Layout(kind)
	if err := layout.EnsureDir(); err != nil {
		return nil, fmt.Errorf("create mapper dir: %w", err)
	}
	store, err := r.stores.Open(ctx, kind)
	if err != nil {
		return nil, err
	}
	ids, err := mapper.Open(ctx, kind, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if ids.Len() > 0 {
		log.Info("Resuming from identifier map", zap.Int("mapped", ids.Len()))
	}

	return &Session{
		RunID:       r.runID,
		Kind:        kind,
		Layout:      layout,
		IDs:         ids,
		Ledger:      mapper.NewLayoutLedger(layout),
		Tracker:     r.registry.NewTracker(kind),
		Mappings:    r.stores,
		Logger:      log,
		subStores:   r.stores,
		bulkOptions: r.bulkOptions,
	}, nil
}

func (r *Runner) startHistory(ctx context.Context, log *zap.Logger, kind migration.EntityKind, total int) *migration.RunHistory {
	if r.history == nil {
		return nil
	}
	h, err := r.history.Start(ctx, r.runID, kind, total)
	if err != nil {
		log.Warn("Failed to record run start", zap.Error(err))
		return nil
	}
	return h
}

func (r *Runner) finishHistory(ctx context.Context, log *zap.Logger, h *migration.RunHistory, result ModuleResult) {
	if h == nil {
		return
	}
	// the run may have ended because ctx was cancelled
	ctx = context.WithoutCancel(ctx)
	counts := migration.RunCounts{
		Success: result.Succeeded,
		Skipped: result.Skipped,
		Failed:  result.Failed,
	}
	var err error
	if result.Status == ModuleFailed {
		err = r.history.Fail(ctx, h, counts, result.Err.Error())
	} else {
		err = r.history.Complete(ctx, h, counts)
	}
	if err != nil {
		log.Warn("Failed to record run result", zap.Error(err))
	}
}
