package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/persistence/models"
)

// GormRunHistoryRepository implements RunHistoryRepository using GORM
type GormRunHistoryRepository struct {
	db *gorm.DB
}

var _ migration.RunHistoryRepository = (*GormRunHistoryRepository)(nil)

// NewGormRunHistoryRepository creates a new GormRunHistoryRepository
func NewGormRunHistoryRepository(db *gorm.DB) *GormRunHistoryRepository {
	return &GormRunHistoryRepository{db: db}
}

// FindByID finds a run history by ID
func (r *GormRunHistoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*migration.RunHistory, error) {
	var model models.RunHistoryModel
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, migration.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns run histories with pagination and filtering, newest first
func (r *GormRunHistoryRepository) FindAll(
	ctx context.Context,
	filter migration.RunHistoryFilter,
	page, pageSize int,
) (*migration.RunHistoryListResult, error) {
	query := r.db.WithContext(ctx).Model(&models.RunHistoryModel{})
	query = r.applyFilters(query, filter)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var historyModels []models.RunHistoryModel
	if err := query.Order("created_at DESC").Find(&historyModels).Error; err != nil {
		return nil, err
	}

	histories := make([]*migration.RunHistory, len(historyModels))
	for i := range historyModels {
		histories[i] = historyModels[i].ToDomain()
	}

	return &migration.RunHistoryListResult{
		Items:      histories,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// FindLatest returns the most recent history of a module
func (r *GormRunHistoryRepository) FindLatest(ctx context.Context, module migration.EntityKind) (*migration.RunHistory, error) {
	var model models.RunHistoryModel
	if err := r.db.WithContext(ctx).
		Where("module = ?", module).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, migration.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save saves a run history (create or update)
func (r *GormRunHistoryRepository) Save(ctx context.Context, history *migration.RunHistory) error {
	return r.db.WithContext(ctx).Save(models.RunHistoryModelFromDomain(history)).Error
}

func (r *GormRunHistoryRepository) applyFilters(query *gorm.DB, filter migration.RunHistoryFilter) *gorm.DB {
	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Module != nil {
		query = query.Where("module = ?", *filter.Module)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}
