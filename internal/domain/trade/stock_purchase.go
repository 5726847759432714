package trade

import (
	"strings"
	"time"

	"github.com/partshop/backend/internal/domain/partner"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PurchaseStatus represents the receiving status of a stock purchase
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusReceived  PurchaseStatus = "received"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

// PaymentStatus represents how much of a purchase has been paid
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// SupplierSnapshot is a copy of the supplier's details taken when the
// purchase was written. Later supplier edits or deletion do not touch it.
type SupplierSnapshot struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	TaxID   string `json:"tax_id"`
}

// SnapshotOf copies the supplier fields a purchase keeps
func SnapshotOf(s *partner.Supplier) SupplierSnapshot {
	if s == nil {
		return SupplierSnapshot{}
	}
	return SupplierSnapshot{
		Name:    s.Name,
		Phone:   s.Phone,
		Email:   s.Email,
		Address: s.Address,
		TaxID:   s.TaxID,
	}
}

// IsEmpty reports whether the snapshot carries no supplier name
func (s SupplierSnapshot) IsEmpty() bool {
	return strings.TrimSpace(s.Name) == ""
}

// StockPurchase is a purchase of stock from a supplier. Its items are owned by it.
type StockPurchase struct {
	shared.BaseEntity
	PurchaseNumber   string               `json:"purchase_number" validate:"max=50"`
	SupplierID       *string              `json:"supplier_id,omitempty"`
	SupplierSnapshot SupplierSnapshot     `json:"supplier_snapshot"`
	PurchaseDate     time.Time            `json:"purchase_date"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	TaxAmount        decimal.Decimal      `json:"tax_amount"`
	DiscountAmount   decimal.Decimal      `json:"discount_amount"`
	Total            decimal.Decimal      `json:"total"`
	Status           PurchaseStatus       `json:"status" validate:"required,oneof=pending received cancelled"`
	PaymentStatus    PaymentStatus        `json:"payment_status" validate:"required,oneof=unpaid partial paid"`
	PaymentMethod    shared.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card upi bank_transfer cheque credit other"`
	Notes            string               `json:"notes"`
}

// NewStockPurchase creates a received, unpaid purchase from the given supplier dated now
func NewStockPurchase(supplierID string) *StockPurchase {
	p := &StockPurchase{
		PurchaseDate:  time.Now().UTC(),
		Status:        PurchaseStatusReceived,
		PaymentStatus: PaymentStatusUnpaid,
	}
	if supplierID != "" {
		p.SupplierID = &supplierID
	}
	return p
}

// Validate checks the purchase's invariants
func (p *StockPurchase) Validate() error {
	if p.PurchaseDate.IsZero() {
		return shared.MissingFieldsError("purchase_date")
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = PaymentStatusUnpaid
	}
	if err := shared.NonNegative(map[string]decimal.Decimal{
		"subtotal":        p.Subtotal,
		"tax_amount":      p.TaxAmount,
		"discount_amount": p.DiscountAmount,
		"total":           p.Total,
	}); err != nil {
		return err
	}
	return shared.ValidateStruct(p)
}

// RecalculateTotals sets subtotal, tax and total from the items.
// DiscountAmount is a document-level figure and is kept.
func (p *StockPurchase) RecalculateTotals(items []*StockPurchaseItem) {
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, item := range items {
		net := item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(net)
		tax = tax.Add(net.Mul(item.TaxPercent).Div(hundred))
	}
	p.Subtotal = subtotal.Round(2)
	p.TaxAmount = tax.Round(2)
	total := subtotal.Add(tax).Sub(p.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	p.Total = total.Round(2)
}

// StockPurchaseItem is one line on a stock purchase
type StockPurchaseItem struct {
	shared.BaseEntity
	PurchaseID  string          `json:"purchase_id"`
	PartID      *string         `json:"part_id,omitempty"`
	Description string          `json:"description" validate:"max=500"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Validate checks the item's invariants
func (it *StockPurchaseItem) Validate() error {
	if err := shared.NonNegative(map[string]decimal.Decimal{
		"unit_cost":  it.UnitCost,
		"line_total": it.LineTotal,
	}); err != nil {
		return err
	}
	if err := shared.Percentages(map[string]decimal.Decimal{"tax_percent": it.TaxPercent}); err != nil {
		return err
	}
	return shared.ValidateStruct(it)
}

// ComputeLineTotal returns quantity x unit cost plus tax
func (it *StockPurchaseItem) ComputeLineTotal() decimal.Decimal {
	return lineTotal(it.Quantity, it.UnitCost, decimal.Zero, it.TaxPercent)
}

// StockPurchaseAggregate is a purchase together with its items
type StockPurchaseAggregate struct {
	Purchase *StockPurchase       `json:"purchase"`
	Items    []*StockPurchaseItem `json:"items"`
}
