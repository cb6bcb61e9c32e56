package migration

import (
	"context"

	"github.com/google/uuid"
)

// RunHistoryFilter defines the filters for querying run histories
type RunHistoryFilter struct {
	RunID  string
	Module *EntityKind
	Status *RunStatus
}

// RunHistoryListResult represents a paginated list of run histories
type RunHistoryListResult struct {
	Items      []*RunHistory
	TotalCount int64
	Page       int
	PageSize   int
}

// RunHistoryRepository defines the interface for run history persistence
type RunHistoryRepository interface {
	// FindByID finds a run history by ID
	FindByID(ctx context.Context, id uuid.UUID) (*RunHistory, error)

	// FindAll returns run histories, newest first
	FindAll(ctx context.Context, filter RunHistoryFilter, page, pageSize int) (*RunHistoryListResult, error)

	// FindLatest returns the most recent history for a module, or ErrRunNotFound
	FindLatest(ctx context.Context, module EntityKind) (*RunHistory, error)

	// Save creates or updates a run history
	Save(ctx context.Context, history *RunHistory) error
}
