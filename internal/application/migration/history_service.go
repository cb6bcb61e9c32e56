package migrationapp

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

// HistoryService records module runs and serves them back for listing
type HistoryService struct {
	historyRepo migration.RunHistoryRepository
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(historyRepo migration.RunHistoryRepository) *HistoryService {
	return &HistoryService{
		historyRepo: historyRepo,
	}
}

// Start creates a history record for a module run and marks it processing
func (s *HistoryService) Start(
	ctx context.Context,
	runID string,
	module migration.EntityKind,
	totalItems int,
) (*migration.RunHistory, error) {
	history, err := migration.NewRunHistory(runID, module)
	if err != nil {
		return nil, err
	}
	if err := history.StartProcessing(totalItems); err != nil {
		return nil, err
	}

	if err := s.historyRepo.Save(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to save run history: %w", err)
	}
	return history, nil
}

// Complete marks a module run as completed with its item counts
func (s *HistoryService) Complete(ctx context.Context, history *migration.RunHistory, counts migration.RunCounts) error {
	if err := history.Complete(counts); err != nil {
		return err
	}
	return s.historyRepo.Save(ctx, history)
}

// Fail marks a module run as failed
func (s *HistoryService) Fail(ctx context.Context, history *migration.RunHistory, counts migration.RunCounts, message string) error {
	if err := history.Fail(counts, message); err != nil {
		return err
	}
	return s.historyRepo.Save(ctx, history)
}

// Get retrieves a run history by ID
func (s *HistoryService) Get(ctx context.Context, id uuid.UUID) (*migration.RunHistory, error) {
	return s.historyRepo.FindByID(ctx, id)
}

// Latest returns the most recent run of a module
func (s *HistoryService) Latest(ctx context.Context, module migration.EntityKind) (*migration.RunHistory, error) {
	return s.historyRepo.FindLatest(ctx, module)
}

// ListHistoryFilter defines the filter options for listing run histories
type ListHistoryFilter struct {
	RunID  string
	Module string
	Status string
}

// List retrieves run histories with pagination. Unknown module or status
// values are ignored.
func (s *HistoryService) List(
	ctx context.Context,
	filter ListHistoryFilter,
	page, pageSize int,
) (*migration.RunHistoryListResult, error) {
	repoFilter := migration.RunHistoryFilter{RunID: filter.RunID}

	if filter.Module != "" {
		module := migration.EntityKind(filter.Module)
		if module.IsValid() {
			repoFilter.Module = &module
		}
	}
	if filter.Status != "" {
		status := migration.RunStatus(filter.Status)
		if status.IsValid() {
			repoFilter.Status = &status
		}
	}

	return s.historyRepo.FindAll(ctx, repoFilter, page, pageSize)
}
