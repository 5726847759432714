package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/partshop/backend/internal/domain/finance"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/partshop/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repositories bundles every repository built on one session. A bundle
// handed out by TransactionScope writes inside that transaction.
type Repositories struct {
	Suppliers      *SupplierRepository
	Categories     *CategoryRepository
	Parts          *PartRepository
	Invoices       *InvoiceRepository
	StockPurchases *StockPurchaseRepository
	Transactions   *TransactionRepository
	Users          *UserRepository
	ShopSettings   *ShopSettingsRepository
	AuditLog       *AuditLogRepository

	session Session
	now     func() time.Time
}

// NewRepositories builds the bundle on s
func NewRepositories(s Session, settings DocumentSettings, opts ...RepositoryOption) *Repositories {
	o := repositoryOptions{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repositories{
		Suppliers:      NewSupplierRepository(s, opts...),
		Categories:     NewCategoryRepository(s, opts...),
		Parts:          NewPartRepository(s, opts...),
		Invoices:       NewInvoiceRepository(s, settings, opts...),
		StockPurchases: NewStockPurchaseRepository(s, settings, opts...),
		Transactions:   NewTransactionRepository(s, opts...),
		Users:          NewUserRepository(s, opts...),
		ShopSettings:   NewShopSettingsRepository(s, opts...),
		AuditLog:       NewAuditLogRepository(s, o.now),
		session:        s,
		now:            o.now,
	}
}

// WithTx returns the bundle bound to tx
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return &Repositories{
		Suppliers:      r.Suppliers.WithTx(tx),
		Categories:     r.Categories.WithTx(tx),
		Parts:          r.Parts.WithTx(tx),
		Invoices:       r.Invoices.WithTx(tx),
		StockPurchases: r.StockPurchases.WithTx(tx),
		Transactions:   r.Transactions.WithTx(tx),
		Users:          r.Users.WithTx(tx),
		ShopSettings:   r.ShopSettings.WithTx(tx),
		AuditLog:       NewAuditLogRepository(SessionFor(tx), r.now),
		session:        SessionFor(tx),
		now:            r.now,
	}
}

// TransactionScope runs several repository calls as one atomic unit
type TransactionScope struct {
	repos *Repositories
}

// NewTransactionScope creates a scope over the bundle's session
func NewTransactionScope(repos *Repositories) *TransactionScope {
	return &TransactionScope{repos: repos}
}

// Execute runs fn with a bundle bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *TransactionScope) Execute(ctx context.Context, fn func(repos *Repositories) error) error {
	return s.repos.session.Transaction(ctx, func(tx *gorm.DB) error {
		return fn(s.repos.WithTx(tx))
	})
}

// RecordInvoicePayment marks the invoice paid and books the outstanding
// amount as income in the same transaction. Income already booked against
// the invoice, as for a partially paid one, is not booked again. An empty
// method keeps the invoice's own payment method, or cash when it has none.
func (r *Repositories) RecordInvoicePayment(ctx context.Context, invoiceID string, method shared.PaymentMethod) (*finance.Transaction, error) {
	return ExecuteTransaction(ctx, r.session, func(tx *gorm.DB) (*finance.Transaction, error) {
		repos := r.WithTx(tx)
		inv, err := repos.Invoices.FindByID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, shared.ErrNotFound
		}
		switch inv.Status {
		case trade.InvoiceStatusPaid, trade.InvoiceStatusCancelled:
			return nil, fmt.Errorf("invoice %s is %s: %w", inv.InvoiceNumber, inv.Status, shared.ErrInvalidState)
		}
		outstanding, err := repos.outstanding(ctx, finance.ReferenceTypeInvoice, invoiceID, finance.TransactionTypeIncome, inv.Total)
		if err != nil {
			return nil, err
		}
		if !outstanding.IsPositive() {
			return nil, fmt.Errorf("invoice %s has nothing outstanding: %w", inv.InvoiceNumber, shared.ErrInvalidState)
		}
		method = paymentMethodOr(method, inv.PaymentMethod)

		if _, err := repos.Invoices.Update(ctx, invoiceID, func(i *trade.Invoice) {
			i.Status = trade.InvoiceStatusPaid
			i.PaymentMethod = method
		}); err != nil {
			return nil, err
		}

		income := finance.NewIncome(outstanding, finance.CategorySales).
			WithReference(finance.ReferenceTypeInvoice, invoiceID)
		income.PaymentMethod = method
		income.Date = r.now()
		income.Description = "Payment for " + inv.InvoiceNumber
		return repos.Transactions.Create(ctx, income)
	})
}

// RecordPurchasePayment marks the purchase paid and books the outstanding
// amount as an expense in the same transaction
func (r *Repositories) RecordPurchasePayment(ctx context.Context, purchaseID string, method shared.PaymentMethod) (*finance.Transaction, error) {
	return ExecuteTransaction(ctx, r.session, func(tx *gorm.DB) (*finance.Transaction, error) {
		repos := r.WithTx(tx)
		p, err := repos.StockPurchases.FindByID(ctx, purchaseID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, shared.ErrNotFound
		}
		if p.PaymentStatus == trade.PaymentStatusPaid || p.Status == trade.PurchaseStatusCancelled {
			return nil, fmt.Errorf("purchase %s cannot be paid: %w", p.PurchaseNumber, shared.ErrInvalidState)
		}
		outstanding, err := repos.outstanding(ctx, finance.ReferenceTypePurchase, purchaseID, finance.TransactionTypeExpense, p.Total)
		if err != nil {
			return nil, err
		}
		if !outstanding.IsPositive() {
			return nil, fmt.Errorf("purchase %s has nothing outstanding: %w", p.PurchaseNumber, shared.ErrInvalidState)
		}
		method = paymentMethodOr(method, p.PaymentMethod)

		if _, err := repos.StockPurchases.Update(ctx, purchaseID, func(sp *trade.StockPurchase) {
			sp.PaymentStatus = trade.PaymentStatusPaid
			sp.PaymentMethod = method
		}); err != nil {
			return nil, err
		}

		expense := finance.NewExpense(outstanding, finance.CategoryPurchases).
			WithReference(finance.ReferenceTypePurchase, purchaseID)
		expense.PaymentMethod = method
		expense.Date = r.now()
		expense.Description = "Payment for " + p.PurchaseNumber
		return repos.Transactions.Create(ctx, expense)
	})
}

// outstanding is total less what is already booked against the document
func (r *Repositories) outstanding(ctx context.Context, refType finance.ReferenceType, refID string, txType finance.TransactionType, total decimal.Decimal) (decimal.Decimal, error) {
	booked, err := r.Transactions.FindByReference(ctx, refType, refID)
	if err != nil {
		return decimal.Zero, err
	}
	paid := decimal.Zero
	for _, t := range booked {
		if t.Type == txType {
			paid = paid.Add(t.Amount.Abs())
		}
	}
	return total.Sub(paid), nil
}

func paymentMethodOr(method, fallback shared.PaymentMethod) shared.PaymentMethod {
	if method != "" {
		return method
	}
	if fallback != "" {
		return fallback
	}
	return shared.PaymentMethodCash
}
