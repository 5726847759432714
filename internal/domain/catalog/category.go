package catalog

import (
	"strings"

	"github.com/partshop/backend/internal/domain/shared"
)

// Category groups parts. Categories form a tree through ParentID.
type Category struct {
	shared.BaseEntity
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id,omitempty"`
}

// NewCategory creates a root category
func NewCategory(name string) *Category {
	return &Category{Name: strings.TrimSpace(name)}
}

// Validate checks the category's invariants
func (c *Category) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.ParentID != nil && *c.ParentID != "" && *c.ParentID == c.ID {
		return shared.NewValidationError("category cannot be its own parent", "parent_id")
	}
	return shared.ValidateStruct(c)
}

// IsRoot reports whether the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}
