package persistence

import (
	"context"

	"github.com/partshop/backend/internal/domain/partner"
	"github.com/partshop/backend/internal/domain/shared"
	"gorm.io/gorm"
)

var supplierMapper = Mapper[partner.Supplier]{
	Table: "suppliers",
	Columns: []string{
		"name", "contact_person", "phone", "email", "address", "tax_id", "notes", "is_active",
	},
	Required:     []string{"name"},
	SearchFields: []string{"name", "contact_person", "phone", "email"},
	Decode: func(row Row) (*partner.Supplier, error) {
		return &partner.Supplier{
			BaseEntity:    row.Base(),
			Name:          row.String("name"),
			ContactPerson: row.String("contact_person"),
			Phone:         row.String("phone"),
			Email:         row.String("email"),
			Address:       row.String("address"),
			TaxID:         row.String("tax_id"),
			Notes:         row.String("notes"),
			IsActive:      row.Bool("is_active"),
		}, nil
	},
	Encode: func(s *partner.Supplier) Row {
		row := BaseRow(s.BaseEntity)
		row["name"] = s.Name
		row["contact_person"] = s.ContactPerson
		row["phone"] = s.Phone
		row["email"] = s.Email
		row["address"] = s.Address
		row["tax_id"] = s.TaxID
		row["notes"] = s.Notes
		row["is_active"] = BoolInt(s.IsActive)
		return row
	},
}

// SupplierRepository stores suppliers
type SupplierRepository struct {
	*Repository[partner.Supplier]
}

// NewSupplierRepository creates a supplier repository
func NewSupplierRepository(s Session, opts ...RepositoryOption) *SupplierRepository {
	return &SupplierRepository{NewRepository(s, supplierMapper, opts...)}
}

// WithTx returns the repository bound to tx
func (r *SupplierRepository) WithTx(tx *gorm.DB) *SupplierRepository {
	return &SupplierRepository{r.Repository.WithTx(tx)}
}

// FindActive returns active suppliers ordered by name
func (r *SupplierRepository) FindActive(ctx context.Context) ([]*partner.Supplier, error) {
	return r.FindAll(ctx, shared.FindOptions{
		Where:    map[string]any{"is_active": 1},
		OrderBy:  "name",
		OrderDir: "asc",
	})
}

// Deactivate hides the supplier without touching its purchases. It returns
// nil when no supplier has the id.
func (r *SupplierRepository) Deactivate(ctx context.Context, id string) (*partner.Supplier, error) {
	return r.Update(ctx, id, func(s *partner.Supplier) {
		s.Deactivate()
	})
}
