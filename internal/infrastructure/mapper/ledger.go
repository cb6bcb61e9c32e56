package mapper

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// Failure is one entry of the failure ledger
type Failure struct {
	UID     string         `json:"uid"`
	Name    string         `json:"name,omitempty"`
	Phase   string         `json:"phase,omitempty"`
	Status  int            `json:"status,omitempty"`
	Message string         `json:"message"`
	Errors  map[string]any `json:"errors,omitempty"`
}

// Ledger collects the successes and failures of a module run and writes
// them once at the end of the module.
//
// Thread Safety: Safe for concurrent use.
type Ledger struct {
	successPath string
	failsPath   string

	mu        sync.Mutex
	successes []any
	failures  []Failure
}

// NewLedger creates a ledger writing to the given files
func NewLedger(successPath, failsPath string) *Ledger {
	return &Ledger{successPath: successPath, failsPath: failsPath}
}

// NewLayoutLedger creates the ledger for a layout's success/fails files
func NewLayoutLedger(l Layout) *Ledger {
	return NewLedger(l.SuccessPath(), l.FailsPath())
}

// AppendSuccess records a successful item
func (l *Ledger) AppendSuccess(v any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successes = append(l.successes, v)
}

// AppendFailure records a failed item. An empty message is replaced so
// that no failure is written without a reason.
func (l *Ledger) AppendFailure(f Failure) {
	if f.Message == "" {
		f.Message = "unknown error"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, f)
}

// Counts returns the number of successes and failures recorded
func (l *Ledger) Counts() (successes, failures int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.successes), len(l.failures)
}

// Failures returns a copy of the failure entries
func (l *Ledger) Failures() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Failure, len(l.failures))
	copy(out, l.failures)
	return out
}

// Successes returns a copy of the success entries
func (l *Ledger) Successes() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]any, len(l.successes))
	copy(out, l.successes)
	return out
}

// Flush writes the ledgers of a module run that finished. A run without
// failures removes the fails file left by an earlier run. The success file is
// only replaced when this run has successes.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writeNonEmpty(); err != nil {
		return err
	}
	if len(l.failures) > 0 || l.failsPath == "" {
		return nil
	}
	if err := os.Remove(l.failsPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", l.failsPath, err)
	}
	return nil
}

// FlushPartial writes the non-empty lists of a module run that stopped early
// and keeps earlier files for the items it never reached.
func (l *Ledger) FlushPartial() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeNonEmpty()
}

func (l *Ledger) writeNonEmpty() error {
	if len(l.successes) > 0 {
		if err := writeJSON(l.successPath, l.successes); err != nil {
			return err
		}
	}
	if len(l.failures) > 0 {
		return writeJSON(l.failsPath, l.failures)
	}
	return nil
}
