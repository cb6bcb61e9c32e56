package models

import (
	"time"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

// RunHistoryModel is the persistence model for the RunHistory domain entity.
type RunHistoryModel struct {
	BaseModel
	RunID        string               `gorm:"type:varchar(64);not null;index"`
	Module       migration.EntityKind `gorm:"type:varchar(32);not null;index"`
	Status       migration.RunStatus  `gorm:"type:varchar(20);not null;default:'pending'"`
	TotalItems   int                  `gorm:"not null;default:0"`
	SuccessItems int                  `gorm:"not null;default:0"`
	SkippedItems int                  `gorm:"not null;default:0"`
	FailedItems  int                  `gorm:"not null;default:0"`
	ErrorMessage string               `gorm:"type:text"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TableName returns the table name for GORM
func (RunHistoryModel) TableName() string {
	return "run_histories"
}

// ToDomain converts the persistence model to a domain RunHistory entity.
func (m *RunHistoryModel) ToDomain() *migration.RunHistory {
	return &migration.RunHistory{
		BaseEntity:   m.BaseModel.ToDomain(),
		RunID:        m.RunID,
		Module:       m.Module,
		Status:       m.Status,
		TotalItems:   m.TotalItems,
		SuccessItems: m.SuccessItems,
		SkippedItems: m.SkippedItems,
		FailedItems:  m.FailedItems,
		ErrorMessage: m.ErrorMessage,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain RunHistory entity.
func (m *RunHistoryModel) FromDomain(h *migration.RunHistory) {
	m.FromDomainBaseEntity(h.BaseEntity)
	m.RunID = h.RunID
	m.Module = h.Module
	m.Status = h.Status
	m.TotalItems = h.TotalItems
	m.SuccessItems = h.SuccessItems
	m.SkippedItems = h.SkippedItems
	m.FailedItems = h.FailedItems
	m.ErrorMessage = h.ErrorMessage
	m.StartedAt = h.StartedAt
	m.CompletedAt = h.CompletedAt
}

// RunHistoryModelFromDomain creates a new persistence model from a domain RunHistory entity.
func RunHistoryModelFromDomain(h *migration.RunHistory) *RunHistoryModel {
	m := &RunHistoryModel{}
	m.FromDomain(h)
	return m
}
