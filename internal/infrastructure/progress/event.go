package progress

import (
	"time"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

// EventType identifies a tracker transition
type EventType string

const (
	EventModuleStarted    EventType = "module_started"
	EventProcessAdded     EventType = "process_added"
	EventProcessStarted   EventType = "process_started"
	EventItemTicked       EventType = "item_ticked"
	EventProcessCompleted EventType = "process_completed"
	EventModuleCompleted  EventType = "module_completed"
)

// Event is emitted to sinks after every tracker transition
type Event struct {
	Type    EventType
	Module  migration.EntityKind
	Time    time.Time
	Success bool

	// Process events
	Process  migration.ProcessSnapshot
	Label    string
	ErrorMsg string

	// Module completion
	Message string
	Summary migration.ModuleProgress
}

// Sink renders or records tracker events. Notify is called with the
// tracker's lock held, so sinks must not call back into the tracker.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

// Notify implements Sink
func (f SinkFunc) Notify(e Event) {
	f(e)
}

// MultiSink fans events out to several sinks
type MultiSink []Sink

// Notify implements Sink
func (m MultiSink) Notify(e Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(e)
		}
	}
}

type nopSink struct{}

func (nopSink) Notify(Event) {}
