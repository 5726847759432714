package partner

import (
	"strings"

	"github.com/partshop/backend/internal/domain/shared"
)

// Supplier is a vendor the shop buys stock from
type Supplier struct {
	shared.BaseEntity
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=100"`
	Phone         string `json:"phone" validate:"omitempty,phone"`
	Email         string `json:"email" validate:"omitempty,email"`
	Address       string `json:"address"`
	TaxID         string `json:"tax_id" validate:"max=50"`
	Notes         string `json:"notes"`
	IsActive      bool   `json:"is_active"`
}

// NewSupplier creates an active supplier with the given name
func NewSupplier(name string) *Supplier {
	return &Supplier{
		Name:     strings.TrimSpace(name),
		IsActive: true,
	}
}

// Validate checks the supplier's invariants
func (s *Supplier) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Phone = strings.TrimSpace(s.Phone)
	return shared.ValidateStruct(s)
}

// Deactivate hides the supplier from pickers without deleting its history
func (s *Supplier) Deactivate() {
	s.IsActive = false
}
