package migrationapp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/bulk"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
)

// Phase describes one bulk step of a module: the items, the remote call and
// how outcomes feed the identifier map, the ledger and progress.
type Phase[P, R any] struct {
	// Name is the progress process name
	Name  string
	Label string
	Items []P

	UID      func(P) string
	ItemName func(P) string
	Call     bulk.Call[P, R]

	// Mapped reports whether the item is already done. Defaults to an
	// identifier map lookup of UID.
	Mapped func(P) bool

	// Existing resolves an item to a target without calling the API. The
	// returned value is stored in the identifier map and the item is
	// counted as skipped.
	Existing func(P) (target any, ok bool)

	// Prepare rewrites and validates the item before the call. An error is
	// an item failure unless wrapped with Fatal.
	Prepare func(ctx context.Context, item P) (P, error)

	// TargetValue is stored in the identifier map on success; nil leaves
	// the map untouched.
	TargetValue func(resp R, item P) any

	// SuccessEntry is appended to the success ledger; nil appends resp and
	// a nil entry appends nothing.
	SuccessEntry func(resp R, item P) any

	// ResolveConflict finds the target of an item the API reports as
	// already existing, so later phases can refer to it.
	ResolveConflict func(ctx context.Context, item P) (target any, ok bool, err error)

	AfterSuccess func(ctx context.Context, resp R, item P) error
	AfterFailure func(ctx context.Context, err error, item P) error

	// Ledger overrides the session ledger
	Ledger *mapper.Ledger

	// Followup phases revisit items a primary phase already counted, so
	// their outcomes are ticked and ledgered but not added to the counts.
	Followup bool
}

func (ph *Phase[P, R]) count(c *atomic.Int64) {
	if !ph.Followup {
		c.Add(1)
	}
}

func (ph *Phase[P, R]) label() string {
	if ph.Label != "" {
		return ph.Label
	}
	return ph.Name
}

func (ph *Phase[P, R]) itemName(item P) string {
	if ph.ItemName != nil {
		if n := ph.ItemName(item); n != "" {
			return n
		}
	}
	return ph.UID(item)
}

// RunPhase registers a process sized to the items and runs them through the
// bulk executor. Item failures are recorded and do not fail the phase; a
// hook error or a fatal outcome completes the process as failed and is
// returned.
func RunPhase[P, R any](ctx context.Context, s *Session, ph Phase[P, R]) (bulk.Summary, error) {
	if ph.UID == nil || ph.Call == nil {
		return bulk.Summary{}, errors.New("phase requires UID and Call")
	}
	if err := s.Tracker.AddProcess(ph.Name, len(ph.Items)); err != nil {
		return bulk.Summary{}, err
	}
	if err := s.Tracker.StartProcess(ph.Name, ph.label()); err != nil {
		return bulk.Summary{}, err
	}

	ledger := ph.Ledger
	if ledger == nil {
		ledger = s.Ledger
	}
	mapped := ph.Mapped
	if mapped == nil {
		mapped = func(item P) bool { return s.IDs.Has(ph.UID(item)) }
	}

	skip := func(ctx context.Context, item P, target any) error {
		uid := ph.UID(item)
		if target != nil {
			if err := s.IDs.Set(ctx, uid, target); err != nil && !errors.Is(err, mapper.ErrAlreadyMapped) {
				return err
			}
		}
		ph.count(&s.skipped)
		return s.Tracker.Tick(true, ph.itemName(item)+" (already exists)", "", ph.Name)
	}

	fail := func(ctx context.Context, item P, err error) error {
		f := failureFor(ph.UID(item), ph.itemName(item), ph.Name, err)
		ledger.AppendFailure(f)
		ph.count(&s.failed)
		if ph.AfterFailure != nil {
			if herr := ph.AfterFailure(ctx, err, item); herr != nil {
				return herr
			}
		}
		return s.Tracker.Tick(false, ph.itemName(item), failureMessage(f), ph.Name)
	}

	conflict := func(ctx context.Context, item P, cause error) error {
		if ph.ResolveConflict != nil {
			target, ok, err := ph.ResolveConflict(ctx, item)
			if err != nil {
				if Classify(err) == OutcomeFatal {
					return err
				}
				return fail(ctx, item, fmt.Errorf("resolve existing %s: %w", ph.UID(item), err))
			}
			if ok {
				return skip(ctx, item, target)
			}
		}
		s.Logger.Warn("Item exists on the target but is not mapped",
			zap.String("process", ph.Name),
			zap.String("uid", ph.UID(item)),
			zap.Error(cause),
		)
		return skip(ctx, item, nil)
	}

	tasks := make([]bulk.Task[P, R], len(ph.Items))
	for i, item := range ph.Items {
		tasks[i] = bulk.Task[P, R]{
			Name:    ph.UID(item),
			Payload: item,
			Serialize: func(ctx context.Context, item P) (P, bool, error) {
				if mapped(item) {
					return item, false, skip(ctx, item, nil)
				}
				if ph.Existing != nil {
					if target, ok := ph.Existing(item); ok {
						return item, false, skip(ctx, item, target)
					}
				}
				if ph.Prepare != nil {
					out, err := ph.Prepare(ctx, item)
					if err != nil {
						if Classify(err) == OutcomeFatal {
							return item, false, err
						}
						return item, false, fail(ctx, item, err)
					}
					item = out
				}
				return item, true, nil
			},
			OnSuccess: func(ctx context.Context, resp R, item P) error {
				uid := ph.UID(item)
				if ph.TargetValue != nil {
					if target := ph.TargetValue(resp, item); target != nil {
						if err := s.IDs.Set(ctx, uid, target); err != nil {
							if !errors.Is(err, mapper.ErrAlreadyMapped) {
								return err
							}
							s.Logger.Warn("Duplicate source uid in export",
								zap.String("process", ph.Name),
								zap.String("uid", uid),
							)
							return fail(ctx, item, fmt.Errorf("duplicate source uid %s", uid))
						}
					}
				}
				var entry any = resp
				if ph.SuccessEntry != nil {
					entry = ph.SuccessEntry(resp, item)
				}
				if entry != nil {
					ledger.AppendSuccess(entry)
				}
				if ph.AfterSuccess != nil {
					if err := ph.AfterSuccess(ctx, resp, item); err != nil {
						return err
					}
				}
				ph.count(&s.succeeded)
				return s.Tracker.Tick(true, ph.itemName(item), "", ph.Name)
			},
			OnFailure: func(ctx context.Context, err error, item P) error {
				switch Classify(err) {
				case OutcomeFatal:
					return err
				case OutcomeSkip:
					return conflict(ctx, item, err)
				default:
					return fail(ctx, item, err)
				}
			},
		}
	}

	summary, err := bulk.New(ph.Call, s.executorOptions(ph.Name)...).Run(ctx, tasks)
	if err != nil {
		_ = s.Tracker.CompleteProcess(ph.Name, false)
		return summary, fmt.Errorf("%s: %w", ph.Name, err)
	}
	return summary, s.Tracker.CompleteProcess(ph.Name, true)
}

// RunPrerequisite runs a one-time fetch as a single-item process. Its error
// is fatal to the module.
func RunPrerequisite(ctx context.Context, s *Session, name, label string, fn func(ctx context.Context) error) error {
	if err := s.Tracker.AddProcess(name, 1); err != nil {
		return err
	}
	if err := s.Tracker.StartProcess(name, label); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		_ = s.Tracker.Tick(false, label, err.Error(), name)
		_ = s.Tracker.CompleteProcess(name, false)
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Tracker.Tick(true, label, "", name); err != nil {
		return err
	}
	return s.Tracker.CompleteProcess(name, true)
}

// recordUID and recordName adapt migration.Record to Phase
func recordUID(r migration.Record) string  { return r.UID }
func recordName(r migration.Record) string { return r.Name() }
