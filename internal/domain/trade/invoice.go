package trade

import (
	"strings"
	"time"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// InvoiceStatuses lists every storable status
var InvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPaid,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// IsPaidEquivalent reports whether the invoice counts as revenue
func (s InvoiceStatus) IsPaidEquivalent() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusPartiallyPaid
}

// IsOpen reports whether the invoice still awaits payment
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusSent
}

// DefaultOverdueAfter is how long a sent or draft invoice may stay unpaid
// before reads report it as overdue.
const DefaultOverdueAfter = 15 * 24 * time.Hour

// Customer is the buyer as recorded on the invoice. It is stored with the
// invoice and is not linked to any other table.
type Customer struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

// Invoice is a sales document. Its line items are owned by it.
type Invoice struct {
	shared.BaseEntity
	InvoiceNumber  string               `json:"invoice_number" validate:"max=50"`
	Customer       Customer             `json:"customer"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	Total          decimal.Decimal      `json:"total"`
	Date           time.Time            `json:"date"`
	DueDate        *time.Time           `json:"due_date,omitempty"`
	Status         InvoiceStatus        `json:"status" validate:"required,oneof=draft sent paid partially_paid overdue cancelled"`
	PaymentMethod  shared.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card upi bank_transfer cheque credit other"`
	Notes          string               `json:"notes"`

	// EffectiveStatus is computed when the invoice is read and never stored
	EffectiveStatus InvoiceStatus `json:"effective_status,omitempty"`
}

// NewInvoice creates a draft invoice dated now
func NewInvoice(customer Customer) *Invoice {
	return &Invoice{
		Customer: customer,
		Date:     time.Now().UTC(),
		Status:   InvoiceStatusDraft,
	}
}

// Validate checks the invoice's invariants
func (i *Invoice) Validate() error {
	i.Customer.Name = strings.TrimSpace(i.Customer.Name)
	i.Customer.Email = strings.ToLower(strings.TrimSpace(i.Customer.Email))
	if i.Date.IsZero() {
		return shared.MissingFieldsError("date")
	}
	if err := shared.NonNegative(map[string]decimal.Decimal{
		"subtotal":        i.Subtotal,
		"tax_amount":      i.TaxAmount,
		"discount_amount": i.DiscountAmount,
		"total":           i.Total,
	}); err != nil {
		return err
	}
	return shared.ValidateStruct(i)
}

// DeriveStatus returns the status reads should report. Draft and sent
// invoices dated more than overdueAfter before now become overdue.
func DeriveStatus(stored InvoiceStatus, date, now time.Time, overdueAfter time.Duration) InvoiceStatus {
	if stored.IsOpen() && !date.IsZero() && now.Sub(date) > overdueAfter {
		return InvoiceStatusOverdue
	}
	return stored
}

// ApplyDerivedStatus fills EffectiveStatus. The stored Status is left as is.
func (i *Invoice) ApplyDerivedStatus(now time.Time, overdueAfter time.Duration) {
	i.EffectiveStatus = DeriveStatus(i.Status, i.Date, now, overdueAfter)
}

// CurrentStatus returns EffectiveStatus when it was derived, else Status
func (i *Invoice) CurrentStatus() InvoiceStatus {
	if i.EffectiveStatus != "" {
		return i.EffectiveStatus
	}
	return i.Status
}

// RecalculateTotals sets subtotal, tax, discount and total from the items
func (i *Invoice) RecalculateTotals(items []*InvoiceItem) {
	subtotal, tax, discount := decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range items {
		gross := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemDiscount := gross.Mul(item.DiscountPercent).Div(hundred)
		net := gross.Sub(itemDiscount)
		subtotal = subtotal.Add(gross)
		discount = discount.Add(itemDiscount)
		tax = tax.Add(net.Mul(item.TaxPercent).Div(hundred))
	}
	i.Subtotal = subtotal.Round(2)
	i.DiscountAmount = discount.Round(2)
	i.TaxAmount = tax.Round(2)
	i.Total = subtotal.Sub(discount).Add(tax).Round(2)
}

// InvoiceItem is one line on an invoice. PartID is nil for free-text lines
// and after the referenced part was deleted.
type InvoiceItem struct {
	shared.BaseEntity
	InvoiceID       string          `json:"invoice_id"`
	PartID          *string         `json:"part_id,omitempty"`
	Description     string          `json:"description" validate:"max=500"`
	Quantity        int             `json:"quantity" validate:"gte=0"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// Validate checks the item's invariants
func (it *InvoiceItem) Validate() error {
	if err := shared.NonNegative(map[string]decimal.Decimal{
		"unit_price": it.UnitPrice,
		"line_total": it.LineTotal,
	}); err != nil {
		return err
	}
	if err := shared.Percentages(map[string]decimal.Decimal{
		"discount_percent": it.DiscountPercent,
		"tax_percent":      it.TaxPercent,
	}); err != nil {
		return err
	}
	return shared.ValidateStruct(it)
}

// ComputeLineTotal returns quantity x unit price after discount, plus tax
func (it *InvoiceItem) ComputeLineTotal() decimal.Decimal {
	return lineTotal(it.Quantity, it.UnitPrice, it.DiscountPercent, it.TaxPercent)
}

// InvoiceAggregate is an invoice together with its items
type InvoiceAggregate struct {
	Invoice *Invoice       `json:"invoice"`
	Items   []*InvoiceItem `json:"items"`
}

var hundred = decimal.NewFromInt(100)

func lineTotal(quantity int, unitPrice, discountPercent, taxPercent decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	net := gross.Sub(gross.Mul(discountPercent).Div(hundred))
	return net.Add(net.Mul(taxPercent).Div(hundred)).Round(2)
}
