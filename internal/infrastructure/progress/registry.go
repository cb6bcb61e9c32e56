package progress

import (
	"sync"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

// Registry keeps the trackers of the current run for status reporting
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	sink Sink

	mu       sync.RWMutex
	runID    string
	trackers []*Tracker
}

// NewRegistry creates a registry whose trackers report to sink
func NewRegistry(sink Sink) *Registry {
	return &Registry{sink: sink}
}

// SetRunID records the ID of the run being tracked
func (r *Registry) SetRunID(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = runID
}

// RunID returns the ID of the run being tracked
func (r *Registry) RunID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runID
}

// NewTracker creates and registers the tracker of module
func (r *Registry) NewTracker(module migration.EntityKind) *Tracker {
	t := NewTracker(module, r.sink)
	r.mu.Lock()
	r.trackers = append(r.trackers, t)
	r.mu.Unlock()
	return t
}

// Snapshot returns the progress of every registered module in start order
func (r *Registry) Snapshot() []migration.ModuleProgress {
	r.mu.RLock()
	trackers := make([]*Tracker, len(r.trackers))
	copy(trackers, r.trackers)
	r.mu.RUnlock()

	out := make([]migration.ModuleProgress, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.Snapshot())
	}
	return out
}
