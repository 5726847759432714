package persistence

import (
	"context"

	"github.com/partshop/backend/internal/domain/catalog"
	"github.com/partshop/backend/internal/domain/shared"
	"gorm.io/gorm"
)

var partMapper = Mapper[catalog.Part]{
	Table: "parts",
	Columns: []string{
		"name", "part_number", "brand", "description", "category_id", "supplier_id",
		"purchase_price", "selling_price", "mrp", "quantity", "min_stock_level",
		"unit", "location", "status",
	},
	Required:     []string{"name", "status"},
	SearchFields: []string{"name", "part_number", "brand", "description"},
	Decode: func(row Row) (*catalog.Part, error) {
		return &catalog.Part{
			BaseEntity:    row.Base(),
			Name:          row.String("name"),
			PartNumber:    row.String("part_number"),
			Brand:         row.String("brand"),
			Description:   row.String("description"),
			CategoryID:    row.StringPtr("category_id"),
			SupplierID:    row.StringPtr("supplier_id"),
			PurchasePrice: row.Decimal("purchase_price"),
			SellingPrice:  row.Decimal("selling_price"),
			MRP:           row.Decimal("mrp"),
			Quantity:      row.Int("quantity"),
			MinStockLevel: row.Int("min_stock_level"),
			Unit:          row.String("unit"),
			Location:      row.String("location"),
			Status:        catalog.PartStatus(row.String("status")),
		}, nil
	},
	Encode: func(p *catalog.Part) Row {
		row := BaseRow(p.BaseEntity)
		row["name"] = p.Name
		row["part_number"] = p.PartNumber
		row["brand"] = p.Brand
		row["description"] = p.Description
		row["category_id"] = NullString(p.CategoryID)
		row["supplier_id"] = NullString(p.SupplierID)
		row["purchase_price"] = Money(p.PurchasePrice)
		row["selling_price"] = Money(p.SellingPrice)
		row["mrp"] = Money(p.MRP)
		row["quantity"] = p.Quantity
		row["min_stock_level"] = p.MinStockLevel
		row["unit"] = p.Unit
		row["location"] = p.Location
		row["status"] = string(p.Status)
		return row
	},
}

// PartRepository stores parts. Quantity is also changed by the item
// triggers when invoices and purchases are written.
type PartRepository struct {
	*Repository[catalog.Part]
}

// NewPartRepository creates a part repository
func NewPartRepository(s Session, opts ...RepositoryOption) *PartRepository {
	return &PartRepository{NewRepository(s, partMapper, opts...)}
}

// WithTx returns the repository bound to tx
func (r *PartRepository) WithTx(tx *gorm.DB) *PartRepository {
	return &PartRepository{r.Repository.WithTx(tx)}
}

// FindActive returns active parts ordered by name
func (r *PartRepository) FindActive(ctx context.Context) ([]*catalog.Part, error) {
	return r.FindAll(ctx, shared.FindOptions{
		Where:    map[string]any{"status": string(catalog.PartStatusActive)},
		OrderBy:  "name",
		OrderDir: "asc",
	})
}

// FindByCategory returns the parts in a category ordered by name
func (r *PartRepository) FindByCategory(ctx context.Context, categoryID string) ([]*catalog.Part, error) {
	return r.FindAll(ctx, shared.FindOptions{
		Where:    map[string]any{"category_id": categoryID},
		OrderBy:  "name",
		OrderDir: "asc",
	})
}

// FindLowStock returns active parts with 0 < quantity <= min_stock_level
func (r *PartRepository) FindLowStock(ctx context.Context) ([]*catalog.Part, error) {
	return r.Query(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND quantity > 0 AND quantity <= min_stock_level", catalog.PartStatusActive).
			Order("quantity ASC").Order("name ASC")
	})
}

// FindOutOfStock returns active parts with no units left
func (r *PartRepository) FindOutOfStock(ctx context.Context) ([]*catalog.Part, error) {
	return r.Query(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND quantity = 0", catalog.PartStatusActive).Order("name ASC")
	})
}

// AdjustQuantity applies a manual stock correction of delta units. It
// returns nil when no part has the id. Stock that would go negative fails
// validation and nothing is written.
func (r *PartRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*catalog.Part, error) {
	return r.Update(ctx, id, func(p *catalog.Part) {
		p.Quantity += delta
	})
}
