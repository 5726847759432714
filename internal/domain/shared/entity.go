package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all persisted domain entities
type Entity interface {
	GetID() string
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
	GetVersion() int
}

// BaseEntity provides the fields every persisted entity shares.
// Version is bumped on every update. Nothing compares it on write yet.
type BaseEntity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() string {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// GetVersion returns the optimistic version counter
func (e *BaseEntity) GetVersion() int {
	return e.Version
}

// Base returns the embedded base entity so generic storage code can set
// ids and timestamps
func (e *BaseEntity) Base() *BaseEntity {
	return e
}

// IsNew reports whether the entity has not been persisted yet
func (e *BaseEntity) IsNew() bool {
	return e.Version == 0
}

// NewBaseEntity creates a new base entity with a generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        NewID(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// NewID returns a new random entity identifier
func NewID() string {
	return uuid.NewString()
}
