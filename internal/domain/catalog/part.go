package catalog

import (
	"strings"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PartStatus represents the sale status of a part
type PartStatus string

const (
	PartStatusActive       PartStatus = "active"
	PartStatusInactive     PartStatus = "inactive"
	PartStatusDiscontinued PartStatus = "discontinued"
)

// IsValid reports whether s is a known status
func (s PartStatus) IsValid() bool {
	switch s {
	case PartStatusActive, PartStatusInactive, PartStatusDiscontinued:
		return true
	}
	return false
}

// Part is a stocked item. Quantity is also moved by the sale and purchase
// item triggers, outside Update.
type Part struct {
	shared.BaseEntity
	Name          string          `json:"name" validate:"required,max=200"`
	PartNumber    string          `json:"part_number" validate:"max=100"`
	Brand         string          `json:"brand" validate:"max=100"`
	Description   string          `json:"description"`
	CategoryID    *string         `json:"category_id,omitempty"`
	SupplierID    *string         `json:"supplier_id,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	MRP           decimal.Decimal `json:"mrp"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	MinStockLevel int             `json:"min_stock_level" validate:"gte=0"`
	Unit          string          `json:"unit" validate:"max=20"`
	Location      string          `json:"location" validate:"max=100"`
	Status        PartStatus      `json:"status" validate:"required,oneof=active inactive discontinued"`
}

// NewPart creates an active part with zero stock
func NewPart(name string, purchasePrice, sellingPrice decimal.Decimal) *Part {
	return &Part{
		Name:          strings.TrimSpace(name),
		PurchasePrice: purchasePrice,
		SellingPrice:  sellingPrice,
		MRP:           sellingPrice,
		Unit:          "pcs",
		Status:        PartStatusActive,
	}
}

// Validate checks the part's invariants
func (p *Part) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = PartStatusActive
	}
	if err := shared.NonNegative(map[string]decimal.Decimal{
		"purchase_price": p.PurchasePrice,
		"selling_price":  p.SellingPrice,
		"mrp":            p.MRP,
	}); err != nil {
		return err
	}
	return shared.ValidateStruct(p)
}

// IsActive reports whether the part is on sale
func (p *Part) IsActive() bool {
	return p.Status == PartStatusActive
}

// IsOutOfStock reports whether no units are left
func (p *Part) IsOutOfStock() bool {
	return p.Quantity == 0
}

// IsLowStock reports whether stock is positive but at or below the minimum level.
// It never overlaps with IsOutOfStock.
func (p *Part) IsLowStock() bool {
	return p.Quantity > 0 && p.Quantity <= p.MinStockLevel
}

// StockValue is the purchase cost of the units on hand
func (p *Part) StockValue() decimal.Decimal {
	return p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Margin is the per-unit profit at the selling price
func (p *Part) Margin() decimal.Decimal {
	return p.SellingPrice.Sub(p.PurchasePrice)
}
