package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity provides identity, timestamps and an optimistic-lock version
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// Touch bumps the version and the update timestamp
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
	e.Version++
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}
