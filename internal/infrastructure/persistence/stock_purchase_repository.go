package persistence

import (
	"context"
	"fmt"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/partshop/backend/internal/domain/trade"
	"gorm.io/gorm"
)

var stockPurchaseMapper = Mapper[trade.StockPurchase]{
	Table: "stock_purchases",
	Columns: []string{
		"purchase_number", "supplier_id", "supplier_snapshot", "purchase_date",
		"subtotal", "tax_amount", "discount_amount", "total",
		"status", "payment_status", "payment_method", "notes",
	},
	Required:     []string{"purchase_number", "purchase_date", "status", "payment_status"},
	SearchFields: []string{"purchase_number", "supplier_snapshot", "notes"},
	Normalize: func(p *trade.StockPurchase) {
		p.PurchaseDate = StorageTime(p.PurchaseDate)
	},
	Decode: func(row Row) (*trade.StockPurchase, error) {
		p := &trade.StockPurchase{
			BaseEntity:     row.Base(),
			PurchaseNumber: row.String("purchase_number"),
			SupplierID:     row.StringPtr("supplier_id"),
			PurchaseDate:   row.Time("purchase_date"),
			Subtotal:       row.Decimal("subtotal"),
			TaxAmount:      row.Decimal("tax_amount"),
			DiscountAmount: row.Decimal("discount_amount"),
			Total:          row.Decimal("total"),
			Status:         trade.PurchaseStatus(row.String("status")),
			PaymentStatus:  trade.PaymentStatus(row.String("payment_status")),
			PaymentMethod:  shared.PaymentMethod(row.String("payment_method")),
			Notes:          row.String("notes"),
		}
		if err := row.JSON("supplier_snapshot", &p.SupplierSnapshot); err != nil {
			return nil, err
		}
		return p, nil
	},
	Encode: func(p *trade.StockPurchase) Row {
		row := BaseRow(p.BaseEntity)
		row["purchase_number"] = p.PurchaseNumber
		row["supplier_id"] = NullString(p.SupplierID)
		row["supplier_snapshot"] = JSONValue(p.SupplierSnapshot)
		row["purchase_date"] = FormatTime(p.PurchaseDate)
		row["subtotal"] = Money(p.Subtotal)
		row["tax_amount"] = Money(p.TaxAmount)
		row["discount_amount"] = Money(p.DiscountAmount)
		row["total"] = Money(p.Total)
		row["status"] = string(p.Status)
		row["payment_status"] = string(p.PaymentStatus)
		row["payment_method"] = nullIfEmpty(string(p.PaymentMethod))
		row["notes"] = p.Notes
		return row
	},
}

var stockPurchaseItemMapper = Mapper[trade.StockPurchaseItem]{
	Table: "stock_purchase_items",
	Columns: []string{
		"purchase_id", "part_id", "description", "quantity", "unit_cost", "tax_percent", "line_total",
	},
	Required:     []string{"purchase_id"},
	SearchFields: []string{"description"},
	Decode: func(row Row) (*trade.StockPurchaseItem, error) {
		return &trade.StockPurchaseItem{
			BaseEntity:  row.Base(),
			PurchaseID:  row.String("purchase_id"),
			PartID:      row.StringPtr("part_id"),
			Description: row.String("description"),
			Quantity:    row.Int("quantity"),
			UnitCost:    row.Decimal("unit_cost"),
			TaxPercent:  row.Decimal("tax_percent"),
			LineTotal:   row.Decimal("line_total"),
		}, nil
	},
	Encode: func(it *trade.StockPurchaseItem) Row {
		row := BaseRow(it.BaseEntity)
		row["purchase_id"] = it.PurchaseID
		row["part_id"] = NullString(it.PartID)
		row["description"] = it.Description
		row["quantity"] = it.Quantity
		row["unit_cost"] = Money(it.UnitCost)
		row["tax_percent"] = Money(it.TaxPercent)
		row["line_total"] = Money(it.LineTotal)
		return row
	},
}

// StockPurchaseRepository stores stock purchases and their items
type StockPurchaseRepository struct {
	*Repository[trade.StockPurchase]
	items     *Repository[trade.StockPurchaseItem]
	suppliers *SupplierRepository
	settings  DocumentSettings
}

// NewStockPurchaseRepository creates a stock purchase repository
func NewStockPurchaseRepository(s Session, settings DocumentSettings, opts ...RepositoryOption) *StockPurchaseRepository {
	return &StockPurchaseRepository{
		Repository: NewRepository(s, stockPurchaseMapper, opts...),
		items:      NewRepository(s, stockPurchaseItemMapper, opts...),
		suppliers:  NewSupplierRepository(s, opts...),
		settings:   settings.withDefaults(),
	}
}

// WithTx returns the repository bound to tx
func (r *StockPurchaseRepository) WithTx(tx *gorm.DB) *StockPurchaseRepository {
	return &StockPurchaseRepository{
		Repository: r.Repository.WithTx(tx),
		items:      r.items.WithTx(tx),
		suppliers:  r.suppliers.WithTx(tx),
		settings:   r.settings,
	}
}

// Items returns the purchase item repository
func (r *StockPurchaseRepository) Items() *Repository[trade.StockPurchaseItem] {
	return r.items
}

// GenerateNumber returns the next purchase number for the current month,
// e.g. PO-26-10-0003. The sequence restarts every month.
func (r *StockPurchaseRepository) GenerateNumber(ctx context.Context) (string, error) {
	db, err := r.Session().DB(ctx)
	if err != nil {
		return "", err
	}
	return r.generateNumber(ctx, db)
}

func (r *StockPurchaseRepository) generateNumber(ctx context.Context, db *gorm.DB) (string, error) {
	prefix := trade.MonthPrefix(r.settings.PurchasePrefix, r.now())
	return nextNumber(ctx, db, "stock_purchases", "purchase_number", prefix)
}

// CreateWithItems writes the purchase and its items in one transaction.
// When the purchase carries no supplier snapshot, the live supplier's
// details are copied in within the same transaction. Received purchases
// add their quantities to stock through the item trigger.
func (r *StockPurchaseRepository) CreateWithItems(ctx context.Context, p *trade.StockPurchase, items []*trade.StockPurchaseItem) (*trade.StockPurchaseAggregate, error) {
	if p == nil {
		return nil, shared.MissingFieldsError("purchase")
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("purchase needs at least one item", "items")
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
	if p.Subtotal.IsZero() && p.Total.IsZero() {
		p.RecalculateTotals(items)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return ExecuteTransaction(ctx, r.Session(), func(tx *gorm.DB) (*trade.StockPurchaseAggregate, error) {
		if p.PurchaseNumber == "" {
			number, err := r.generateNumber(ctx, tx)
			if err != nil {
				return nil, err
			}
			p.PurchaseNumber = number
		}
		if p.SupplierSnapshot.IsEmpty() && p.SupplierID != nil && *p.SupplierID != "" {
			supplier, err := r.suppliers.WithTx(tx).FindByID(ctx, *p.SupplierID)
			if err != nil {
				return nil, err
			}
			if supplier == nil {
				return nil, shared.NewValidationError(fmt.Sprintf("supplier %s not found", *p.SupplierID), "supplier_id")
			}
			p.SupplierSnapshot = trade.SnapshotOf(supplier)
		}
		created, err := r.Repository.WithTx(tx).Create(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			it.PurchaseID = created.ID
		}
		createdItems, err := r.items.WithTx(tx).CreateBatch(ctx, items)
		if err != nil {
			return nil, err
		}
		return &trade.StockPurchaseAggregate{Purchase: created, Items: createdItems}, nil
	})
}

// ResolveSupplier returns the supplier as recorded on the purchase. Only
// when the snapshot has no name is the live supplier looked up.
func (r *StockPurchaseRepository) ResolveSupplier(ctx context.Context, p *trade.StockPurchase) (trade.SupplierSnapshot, error) {
	if p == nil {
		return trade.SupplierSnapshot{}, nil
	}
	if !p.SupplierSnapshot.IsEmpty() || p.SupplierID == nil || *p.SupplierID == "" {
		return p.SupplierSnapshot, nil
	}
	supplier, err := r.suppliers.FindByID(ctx, *p.SupplierID)
	if err != nil {
		return trade.SupplierSnapshot{}, err
	}
	return trade.SnapshotOf(supplier), nil
}

// FindWithItems returns the purchase and its items, or nil
func (r *StockPurchaseRepository) FindWithItems(ctx context.Context, id string) (*trade.StockPurchaseAggregate, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	items, err := r.items.Query(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("purchase_id = ?", id).Order("created_at ASC").Order("rowid ASC")
	})
	if err != nil {
		return nil, err
	}
	return &trade.StockPurchaseAggregate{Purchase: p, Items: items}, nil
}

// FindBySupplier returns a supplier's purchases, newest first
func (r *StockPurchaseRepository) FindBySupplier(ctx context.Context, supplierID string) ([]*trade.StockPurchase, error) {
	return r.FindAll(ctx, shared.FindOptions{
		Where:    map[string]any{"supplier_id": supplierID},
		OrderBy:  "purchase_date",
		OrderDir: "desc",
	})
}

// MarkReceived moves a pending purchase to received, which adds its items
// to stock. A received purchase is returned unchanged. It returns nil when
// no purchase has the id.
func (r *StockPurchaseRepository) MarkReceived(ctx context.Context, id string) (*trade.StockPurchase, error) {
	return ExecuteTransaction(ctx, r.Session(), func(tx *gorm.DB) (*trade.StockPurchase, error) {
		purchases := r.Repository.WithTx(tx)
		p, err := purchases.FindByID(ctx, id)
		if err != nil || p == nil {
			return nil, err
		}
		switch p.Status {
		case trade.PurchaseStatusReceived:
			return p, nil
		case trade.PurchaseStatusCancelled:
			return nil, shared.NewValidationError("a cancelled purchase cannot be received", "status")
		}
		return purchases.Update(ctx, id, func(p *trade.StockPurchase) {
			p.Status = trade.PurchaseStatusReceived
		})
	})
}

// DeleteWithItems removes the purchase; its items go with it through the
// cascading foreign key. Stock added by the purchase is not taken back.
func (r *StockPurchaseRepository) DeleteWithItems(ctx context.Context, id string) (bool, error) {
	return r.Delete(ctx, id)
}
