package finance

import (
	"strings"
	"time"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionType tells whether money came in or went out
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// ReferenceType names the kind of document a transaction points at
type ReferenceType string

const (
	ReferenceTypeInvoice  ReferenceType = "invoice"
	ReferenceTypePurchase ReferenceType = "purchase"
	ReferenceTypeExpense  ReferenceType = "expense"
)

// Common transaction categories
const (
	CategorySales     = "sales"
	CategoryPurchases = "purchases"
)

// Transaction is a single cash movement. ReferenceID and ReferenceType are
// set together when the movement settles an invoice, purchase or expense.
type Transaction struct {
	shared.BaseEntity
	Type          TransactionType      `json:"type" validate:"required,oneof=income expense"`
	Amount        decimal.Decimal      `json:"amount"`
	Category      string               `json:"category" validate:"max=100"`
	Description   string               `json:"description"`
	PaymentMethod shared.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card upi bank_transfer cheque credit other"`
	Date          time.Time            `json:"date"`
	ReferenceID   *string              `json:"reference_id,omitempty"`
	ReferenceType ReferenceType        `json:"reference_type,omitempty" validate:"omitempty,oneof=invoice purchase expense"`
}

// NewIncome creates an income transaction dated now
func NewIncome(amount decimal.Decimal, category string) *Transaction {
	return &Transaction{
		Type:     TransactionTypeIncome,
		Amount:   amount,
		Category: category,
		Date:     time.Now().UTC(),
	}
}

// NewExpense creates an expense transaction dated now
func NewExpense(amount decimal.Decimal, category string) *Transaction {
	return &Transaction{
		Type:     TransactionTypeExpense,
		Amount:   amount,
		Category: category,
		Date:     time.Now().UTC(),
	}
}

// WithReference links the transaction to a document
func (t *Transaction) WithReference(refType ReferenceType, id string) *Transaction {
	t.ReferenceType = refType
	t.ReferenceID = &id
	return t
}

// Validate checks the transaction's invariants. A zero amount is rejected.
func (t *Transaction) Validate() error {
	t.Category = strings.TrimSpace(t.Category)
	if t.Amount.IsZero() {
		return shared.NewValidationError("transaction amount cannot be zero", "amount")
	}
	if t.Date.IsZero() {
		return shared.MissingFieldsError("date")
	}
	if (t.ReferenceID == nil) != (t.ReferenceType == "") {
		return shared.NewValidationError("reference_id and reference_type must be set together", "reference_id", "reference_type")
	}
	return shared.ValidateStruct(t)
}

// Signed returns the amount as a cash-flow delta: expenses are negative
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeExpense {
		return t.Amount.Abs().Neg()
	}
	return t.Amount.Abs()
}

// Totals sums income and expense over a range
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int64           `json:"count"`
}

// CategoryTotal is the sum of one category
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

// PaymentMethodTotal is the sum of one payment method, split by type
type PaymentMethodTotal struct {
	PaymentMethod shared.PaymentMethod `json:"payment_method"`
	Income        decimal.Decimal      `json:"income"`
	Expense       decimal.Decimal      `json:"expense"`
	Count         int64                `json:"count"`
}

// DailyTotal is income and expense for one calendar day (YYYY-MM-DD, UTC)
type DailyTotal struct {
	Day     string          `json:"day"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}
