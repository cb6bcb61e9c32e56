package migration

import "time"

// ProcessStatus is the lifecycle state of a progress process
type ProcessStatus string

const (
	ProcessPending   ProcessStatus = "pending"
	ProcessRunning   ProcessStatus = "running"
	ProcessCompleted ProcessStatus = "completed"
	ProcessFailed    ProcessStatus = "failed"
)

// IsTerminal returns true if this is a terminal state
func (s ProcessStatus) IsTerminal() bool {
	return s == ProcessCompleted || s == ProcessFailed
}

// Process is one named, countable phase of a module's work.
//
// State machine: pending -(Start)-> running -(Tick*)-> running -(Complete)-> completed|failed.
// Succeeded+Failed never exceeds Total and a process completes exactly once.
// Process is not safe for concurrent use; the tracker serializes access.
type Process struct {
	Name        string
	Total       int
	Succeeded   int
	Failed      int
	Status      ProcessStatus
	Label       string
	LastError   string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewProcess registers a pending process expecting total items
func NewProcess(name string, total int) (*Process, error) {
	if total < 0 {
		return nil, ErrInvalidTotal
	}
	return &Process{Name: name, Total: total, Status: ProcessPending}, nil
}

// Start moves the process to running and sets its status label
func (p *Process) Start(label string) error {
	switch p.Status {
	case ProcessRunning:
		p.Label = label
		return nil
	case ProcessCompleted, ProcessFailed:
		return ErrProcessCompleted
	}
	now := time.Now()
	p.Status = ProcessRunning
	p.Label = label
	p.StartedAt = &now
	return nil
}

// Tick records the outcome of one item
func (p *Process) Tick(success bool, label, errMsg string) error {
	switch p.Status {
	case ProcessPending:
		return ErrProcessNotStarted
	case ProcessCompleted, ProcessFailed:
		return ErrProcessCompleted
	}
	if p.Done() >= p.Total {
		return ErrProcessOverflow
	}
	if success {
		p.Succeeded++
	} else {
		p.Failed++
		p.LastError = errMsg
	}
	if label != "" {
		p.Label = label
	}
	return nil
}

// Complete closes the process. success reports whether the process as a
// whole finished; item failures do not make a process fail.
func (p *Process) Complete(success bool) error {
	if p.Status.IsTerminal() {
		return ErrProcessCompleted
	}
	now := time.Now()
	if p.StartedAt == nil {
		p.StartedAt = &now
	}
	p.CompletedAt = &now
	if success {
		p.Status = ProcessCompleted
	} else {
		p.Status = ProcessFailed
	}
	return nil
}

// Done returns the number of ticked items
func (p *Process) Done() int {
	return p.Succeeded + p.Failed
}

// Snapshot returns a copy suitable for reporting
func (p *Process) Snapshot() ProcessSnapshot {
	return ProcessSnapshot{
		Name:        p.Name,
		Total:       p.Total,
		Succeeded:   p.Succeeded,
		Failed:      p.Failed,
		Status:      p.Status,
		Label:       p.Label,
		LastError:   p.LastError,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
	}
}

// ProcessSnapshot is a point-in-time copy of a Process
type ProcessSnapshot struct {
	Name        string        `json:"name"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Status      ProcessStatus `json:"status"`
	Label       string        `json:"label,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Percent returns progress through the process as 0-100
func (s ProcessSnapshot) Percent() float64 {
	if s.Total == 0 {
		if s.Status.IsTerminal() {
			return 100
		}
		return 0
	}
	return float64(s.Succeeded+s.Failed) / float64(s.Total) * 100
}

// ModuleProgress is the module-level progress node
type ModuleProgress struct {
	Module      EntityKind        `json:"module"`
	Processes   []ProcessSnapshot `json:"processes"`
	Completed   bool              `json:"completed"`
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Totals sums item counts across processes
func (m ModuleProgress) Totals() (total, succeeded, failed int) {
	for _, p := range m.Processes {
		total += p.Total
		succeeded += p.Succeeded
		failed += p.Failed
	}
	return total, succeeded, failed
}
