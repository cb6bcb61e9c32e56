package migration

import (
	"fmt"
	"time"

	"github.com/contentstack/cli-sub008/internal/domain/shared"
)

// RunStatus represents the status of one module run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// IsValid checks if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusProcessing, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// RunCounts are the item outcomes of a module run. Skipped items were
// already present on the target.
type RunCounts struct {
	Success int
	Skipped int
	Failed  int
}

// RunHistory records the outcome of one module run
type RunHistory struct {
	shared.BaseEntity
	RunID        string     `json:"run_id"`
	Module       EntityKind `json:"module"`
	Status       RunStatus  `json:"status"`
	TotalItems   int        `json:"total_items"`
	SuccessItems int        `json:"success_items"`
	SkippedItems int        `json:"skipped_items"`
	FailedItems  int        `json:"failed_items"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewRunHistory creates a pending history record for a module run
func NewRunHistory(runID string, module EntityKind) (*RunHistory, error) {
	if runID == "" {
		return nil, shared.NewDomainError("INVALID_RUN_ID", "Run ID cannot be empty")
	}
	if !module.IsValid() {
		return nil, shared.NewDomainError(ErrInvalidEntityKind.Code, fmt.Sprintf("Invalid entity kind: %s", module))
	}
	return &RunHistory{
		BaseEntity: shared.NewBaseEntity(),
		RunID:      runID,
		Module:     module,
		Status:     RunStatusPending,
	}, nil
}

// StartProcessing marks the run as started
func (h *RunHistory) StartProcessing(totalItems int) error {
	if h.Status != RunStatusPending {
		return shared.NewDomainError(ErrInvalidRunState.Code, fmt.Sprintf("Cannot start processing from state: %s", h.Status))
	}
	if totalItems < 0 {
		return ErrInvalidTotal
	}
	now := time.Now()
	h.Status = RunStatusProcessing
	h.TotalItems = totalItems
	h.StartedAt = &now
	h.Touch()
	return nil
}

// Complete marks the run as finished. Item failures do not fail the run.
func (h *RunHistory) Complete(counts RunCounts) error {
	if h.Status != RunStatusProcessing {
		return shared.NewDomainError(ErrInvalidRunState.Code, fmt.Sprintf("Cannot complete from state: %s", h.Status))
	}
	now := time.Now()
	h.Status = RunStatusCompleted
	h.applyCounts(counts)
	h.CompletedAt = &now
	h.Touch()
	return nil
}

// Fail marks the run as failed with a fatal error message
func (h *RunHistory) Fail(counts RunCounts, message string) error {
	if h.Status.IsTerminal() {
		return shared.NewDomainError(ErrInvalidRunState.Code, fmt.Sprintf("Cannot fail from terminal state: %s", h.Status))
	}
	now := time.Now()
	h.Status = RunStatusFailed
	h.applyCounts(counts)
	h.ErrorMessage = message
	if h.StartedAt == nil {
		h.StartedAt = &now
	}
	h.CompletedAt = &now
	h.Touch()
	return nil
}

func (h *RunHistory) applyCounts(c RunCounts) {
	h.SuccessItems = c.Success
	h.SkippedItems = c.Skipped
	h.FailedItems = c.Failed
}

// SuccessRate returns the success rate as a percentage (0-100)
func (h *RunHistory) SuccessRate() float64 {
	if h.TotalItems == 0 {
		return 0
	}
	return float64(h.SuccessItems+h.SkippedItems) / float64(h.TotalItems) * 100
}

// Duration returns how long the run took, or has taken so far
func (h *RunHistory) Duration() time.Duration {
	if h.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if h.CompletedAt != nil {
		end = *h.CompletedAt
	}
	return end.Sub(*h.StartedAt)
}
