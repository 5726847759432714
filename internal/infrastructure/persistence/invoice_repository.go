package persistence

import (
	"context"
	"fmt"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/partshop/backend/internal/domain/trade"
	"gorm.io/gorm"
)

var invoiceMapper = Mapper[trade.Invoice]{
	Table: "invoices",
	Columns: []string{
		"invoice_number", "customer", "subtotal", "tax_amount", "discount_amount", "total",
		"date", "due_date", "status", "payment_method", "notes",
	},
	Required:     []string{"invoice_number", "date", "status"},
	SearchFields: []string{"invoice_number", "customer", "notes"},
	Normalize: func(inv *trade.Invoice) {
		inv.Date = StorageTime(inv.Date)
		if inv.DueDate != nil {
			due := StorageTime(*inv.DueDate)
			inv.DueDate = &due
		}
	},
	Decode: func(row Row) (*trade.Invoice, error) {
		inv := &trade.Invoice{
			BaseEntity:     row.Base(),
			InvoiceNumber:  row.String("invoice_number"),
			Subtotal:       row.Decimal("subtotal"),
			TaxAmount:      row.Decimal("tax_amount"),
			DiscountAmount: row.Decimal("discount_amount"),
			Total:          row.Decimal("total"),
			Date:           row.Time("date"),
			DueDate:        row.TimePtr("due_date"),
			Status:         trade.InvoiceStatus(row.String("status")),
			PaymentMethod:  shared.PaymentMethod(row.String("payment_method")),
			Notes:          row.String("notes"),
		}
		if err := row.JSON("customer", &inv.Customer); err != nil {
			return nil, err
		}
		return inv, nil
	},
	Encode: func(inv *trade.Invoice) Row {
		row := BaseRow(inv.BaseEntity)
		row["invoice_number"] = inv.InvoiceNumber
		row["customer"] = JSONValue(inv.Customer)
		row["subtotal"] = Money(inv.Subtotal)
		row["tax_amount"] = Money(inv.TaxAmount)
		row["discount_amount"] = Money(inv.DiscountAmount)
		row["total"] = Money(inv.Total)
		row["date"] = FormatTime(inv.Date)
		row["due_date"] = NullTime(inv.DueDate)
		row["status"] = string(inv.Status)
		row["payment_method"] = nullIfEmpty(string(inv.PaymentMethod))
		row["notes"] = inv.Notes
		return row
	},
}

var invoiceItemMapper = Mapper[trade.InvoiceItem]{
	Table: "invoice_items",
	Columns: []string{
		"invoice_id", "part_id", "description", "quantity", "unit_price",
		"discount_percent", "tax_percent", "line_total",
	},
	Required:     []string{"invoice_id"},
	SearchFields: []string{"description"},
	Decode: func(row Row) (*trade.InvoiceItem, error) {
		return &trade.InvoiceItem{
			BaseEntity:      row.Base(),
			InvoiceID:       row.String("invoice_id"),
			PartID:          row.StringPtr("part_id"),
			Description:     row.String("description"),
			Quantity:        row.Int("quantity"),
			UnitPrice:       row.Decimal("unit_price"),
			DiscountPercent: row.Decimal("discount_percent"),
			TaxPercent:      row.Decimal("tax_percent"),
			LineTotal:       row.Decimal("line_total"),
		}, nil
	},
	Encode: func(it *trade.InvoiceItem) Row {
		row := BaseRow(it.BaseEntity)
		row["invoice_id"] = it.InvoiceID
		row["part_id"] = NullString(it.PartID)
		row["description"] = it.Description
		row["quantity"] = it.Quantity
		row["unit_price"] = Money(it.UnitPrice)
		row["discount_percent"] = Money(it.DiscountPercent)
		row["tax_percent"] = Money(it.TaxPercent)
		row["line_total"] = Money(it.LineTotal)
		return row
	},
}

// InvoiceRepository stores invoices and their items. Reads fill in
// EffectiveStatus; the stored status is only changed by writes.
type InvoiceRepository struct {
	*Repository[trade.Invoice]
	items    *Repository[trade.InvoiceItem]
	settings DocumentSettings
}

// NewInvoiceRepository creates an invoice repository
func NewInvoiceRepository(s Session, settings DocumentSettings, opts ...RepositoryOption) *InvoiceRepository {
	return &InvoiceRepository{
		Repository: NewRepository(s, invoiceMapper, opts...),
		items:      NewRepository(s, invoiceItemMapper, opts...),
		settings:   settings.withDefaults(),
	}
}

// WithTx returns the repository bound to tx
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{
		Repository: r.Repository.WithTx(tx),
		items:      r.items.WithTx(tx),
		settings:   r.settings,
	}
}

// Items returns the invoice item repository
func (r *InvoiceRepository) Items() *Repository[trade.InvoiceItem] {
	return r.items
}

// GenerateNumber returns the next invoice number: the highest numeric
// suffix under the prefix plus one. Two writers reading at once would get
// the same number; the unique index rejects the second insert.
func (r *InvoiceRepository) GenerateNumber(ctx context.Context) (string, error) {
	db, err := r.Session().DB(ctx)
	if err != nil {
		return "", err
	}
	return nextNumber(ctx, db, "invoices", "invoice_number", r.settings.InvoicePrefix)
}

// CreateWithItems writes the invoice and its items in one transaction.
// The invoice and items are validated before anything is written. A
// missing number, missing line totals and missing invoice totals are
// filled in. Any failure, including the stock triggers rejecting a sale,
// leaves nothing behind.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, inv *trade.Invoice, items []*trade.InvoiceItem) (*trade.InvoiceAggregate, error) {
	if inv == nil {
		return nil, shared.MissingFieldsError("invoice")
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("invoice needs at least one item", "items")
	}
	for i, it := range items {
		if it == nil {
			return nil, shared.NewValidationError(fmt.Sprintf("item %d is empty", i), "items")
		}
		if it.LineTotal.IsZero() {
			it.LineTotal = it.ComputeLineTotal()
		}
		if err := it.Validate(); err != nil {
			return nil, err
		}
	}
	if inv.Subtotal.IsZero() && inv.Total.IsZero() {
		inv.RecalculateTotals(items)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	return ExecuteTransaction(ctx, r.Session(), func(tx *gorm.DB) (*trade.InvoiceAggregate, error) {
		if inv.InvoiceNumber == "" {
			number, err := nextNumber(ctx, tx, "invoices", "invoice_number", r.settings.InvoicePrefix)
			if err != nil {
				return nil, err
			}
			inv.InvoiceNumber = number
		}
		created, err := r.Repository.WithTx(tx).Create(ctx, inv)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			it.InvoiceID = created.ID
		}
		createdItems, err := r.items.WithTx(tx).CreateBatch(ctx, items)
		if err != nil {
			return nil, err
		}
		r.derive(created)
		return &trade.InvoiceAggregate{Invoice: created, Items: createdItems}, nil
	})
}

// FindByID returns the invoice with its derived status, or nil
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*trade.Invoice, error) {
	inv, err := r.Repository.FindByID(ctx, id)
	if err != nil || inv == nil {
		return nil, err
	}
	r.derive(inv)
	return inv, nil
}

// FindAll returns invoices with their derived status
func (r *InvoiceRepository) FindAll(ctx context.Context, opts shared.FindOptions) ([]*trade.Invoice, error) {
	invoices, err := r.Repository.FindAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	r.derive(invoices...)
	return invoices, nil
}

// FindWithItems returns the invoice and its items, or nil. The two reads
// are not isolated from each other.
func (r *InvoiceRepository) FindWithItems(ctx context.Context, id string) (*trade.InvoiceAggregate, error) {
	inv, err := r.FindByID(ctx, id)
	if err != nil || inv == nil {
		return nil, err
	}
	items, err := r.ItemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return &trade.InvoiceAggregate{Invoice: inv, Items: items}, nil
}

// ItemsOf returns an invoice's items in the order they were written
func (r *InvoiceRepository) ItemsOf(ctx context.Context, invoiceID string) ([]*trade.InvoiceItem, error) {
	return r.items.Query(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("invoice_id = ?", invoiceID).Order("created_at ASC").Order("rowid ASC")
	})
}

// FindByNumber returns the invoice with the number, or nil
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*trade.Invoice, error) {
	inv, err := r.First(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("invoice_number = ?", number)
	})
	if err != nil || inv == nil {
		return nil, err
	}
	r.derive(inv)
	return inv, nil
}

// FindByStatus returns invoices whose stored status is status, newest first
func (r *InvoiceRepository) FindByStatus(ctx context.Context, status trade.InvoiceStatus) ([]*trade.Invoice, error) {
	return r.FindAll(ctx, shared.FindOptions{
		Where:    map[string]any{"status": string(status)},
		OrderBy:  "date",
		OrderDir: "desc",
	})
}

// ListWithStatus returns invoices, newest first, whose effective status is
// status. An empty status lists every invoice. Asking for overdue includes
// open invoices past the overdue window.
func (r *InvoiceRepository) ListWithStatus(ctx context.Context, status trade.InvoiceStatus) ([]*trade.Invoice, error) {
	invoices, err := r.FindAll(ctx, shared.FindOptions{OrderBy: "date", OrderDir: "desc"})
	if err != nil || status == "" {
		return invoices, err
	}
	out := make([]*trade.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.CurrentStatus() == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

// UpdateStatus stores a new status. It returns nil when no invoice has the id.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status trade.InvoiceStatus) (*trade.Invoice, error) {
	if !isInvoiceStatus(status) {
		return nil, shared.NewValidationError(fmt.Sprintf("unknown invoice status %q", status), "status")
	}
	inv, err := r.Update(ctx, id, func(inv *trade.Invoice) {
		inv.Status = status
	})
	if err != nil || inv == nil {
		return nil, err
	}
	r.derive(inv)
	return inv, nil
}

// DeleteWithItems removes the invoice; its items go with it through the
// cascading foreign key. Stock taken by the sale is not restored.
func (r *InvoiceRepository) DeleteWithItems(ctx context.Context, id string) (bool, error) {
	return r.Delete(ctx, id)
}

func (r *InvoiceRepository) derive(invoices ...*trade.Invoice) {
	now := r.now()
	for _, inv := range invoices {
		inv.ApplyDerivedStatus(now, r.settings.OverdueAfter)
	}
}

func isInvoiceStatus(s trade.InvoiceStatus) bool {
	for _, known := range trade.InvoiceStatuses {
		if s == known {
			return true
		}
	}
	return false
}
