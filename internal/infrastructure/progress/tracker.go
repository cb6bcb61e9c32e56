// Package progress tracks module progress as a two-level state machine
// (module, then named processes ticked per item) and reports it to sinks.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/domain/shared"
)

// Tracker is the progress node of one module run.
//
// Thread Safety: Safe for concurrent use. Ticks may arrive from executor
// goroutines in any order.
type Tracker struct {
	module migration.EntityKind
	sink   Sink

	mu          sync.Mutex
	processes   map[string]*migration.Process
	order       []string
	completed   bool
	success     bool
	message     string
	startedAt   time.Time
	completedAt *time.Time
}

// NewTracker creates the tracker of module, reporting to sink
func NewTracker(module migration.EntityKind, sink Sink) *Tracker {
	if sink == nil {
		sink = nopSink{}
	}
	t := &Tracker{
		module:    module,
		sink:      sink,
		processes: map[string]*migration.Process{},
		startedAt: time.Now(),
	}
	t.sink.Notify(Event{Type: EventModuleStarted, Module: module, Time: t.startedAt})
	return t
}

// Module returns the tracked module
func (t *Tracker) Module() migration.EntityKind {
	return t.module
}

// AddProcess registers a process expecting total items
func (t *Tracker) AddProcess(name string, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed {
		return migration.ErrProgressCompleted
	}
	if _, ok := t.processes[name]; ok {
		return t.processErr(migration.ErrProcessExists, name)
	}
	p, err := migration.NewProcess(name, total)
	if err != nil {
		return err
	}
	t.processes[name] = p
	t.order = append(t.order, name)
	t.emit(EventProcessAdded, p, "", "", true)
	return nil
}

// StartProcess moves a registered process to running with a status label
func (t *Tracker) StartProcess(name, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.lookup(name)
	if err != nil {
		return err
	}
	if err := p.Start(label); err != nil {
		return t.processErr(err, name)
	}
	t.emit(EventProcessStarted, p, label, "", true)
	return nil
}

// Tick records one item outcome under process. Ticking a completed process
// or past its total is an error.
func (t *Tracker) Tick(success bool, label, errMsg, process string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.lookup(process)
	if err != nil {
		return err
	}
	if err := p.Tick(success, label, errMsg); err != nil {
		return t.processErr(err, process)
	}
	t.emit(EventItemTicked, p, label, errMsg, success)
	return nil
}

// CompleteProcess closes a process. success is the outcome of the process
// as a whole, independent of item failures.
func (t *Tracker) CompleteProcess(name string, success bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.lookup(name)
	if err != nil {
		return err
	}
	if err := p.Complete(success); err != nil {
		return t.processErr(err, name)
	}
	t.emit(EventProcessCompleted, p, "", "", success)
	return nil
}

// CompleteProgress closes the module tracker. It may be called once.
func (t *Tracker) CompleteProgress(success bool, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed {
		return migration.ErrProgressCompleted
	}
	now := time.Now()
	t.completed = true
	t.success = success
	t.message = message
	t.completedAt = &now

	t.sink.Notify(Event{
		Type:    EventModuleCompleted,
		Module:  t.module,
		Time:    now,
		Success: success,
		Message: message,
		Summary: t.snapshotLocked(),
	})
	return nil
}

// Snapshot returns the current module progress
func (t *Tracker) Snapshot() migration.ModuleProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Process returns the current state of one process
func (t *Tracker) Process(name string) (migration.ProcessSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.processes[name]
	if !ok {
		return migration.ProcessSnapshot{}, false
	}
	return p.Snapshot(), true
}

func (t *Tracker) snapshotLocked() migration.ModuleProgress {
	out := migration.ModuleProgress{
		Module:      t.module,
		Processes:   make([]migration.ProcessSnapshot, 0, len(t.order)),
		Completed:   t.completed,
		Success:     t.success,
		Message:     t.message,
		StartedAt:   t.startedAt,
		CompletedAt: t.completedAt,
	}
	for _, name := range t.order {
		out.Processes = append(out.Processes, t.processes[name].Snapshot())
	}
	return out
}

func (t *Tracker) lookup(name string) (*migration.Process, error) {
	p, ok := t.processes[name]
	if !ok {
		return nil, t.processErr(migration.ErrUnknownProcess, name)
	}
	return p, nil
}

// processErr adds the module and process to a domain error, keeping its
// code so errors.Is still matches the sentinel.
func (t *Tracker) processErr(err error, name string) error {
	if de, ok := err.(*shared.DomainError); ok {
		return shared.NewDomainError(de.Code, fmt.Sprintf("%s/%s: %s", t.module, name, de.Message))
	}
	return fmt.Errorf("%s/%s: %w", t.module, name, err)
}

func (t *Tracker) emit(typ EventType, p *migration.Process, label, errMsg string, success bool) {
	t.sink.Notify(Event{
		Type:     typ,
		Module:   t.module,
		Time:     time.Now(),
		Success:  success,
		Process:  p.Snapshot(),
		Label:    label,
		ErrorMsg: errMsg,
	})
}
