package persistence

import (
	"context"
	"time"

	"github.com/partshop/backend/internal/domain/finance"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var transactionMapper = Mapper[finance.Transaction]{
	Table: "transactions",
	Columns: []string{
		"type", "amount", "category", "description", "payment_method", "date",
		"reference_id", "reference_type",
	},
	Required:     []string{"type", "amount", "date"},
	SearchFields: []string{"category", "description"},
	Normalize: func(t *finance.Transaction) {
		t.Date = StorageTime(t.Date)
	},
	Decode: func(row Row) (*finance.Transaction, error) {
		return &finance.Transaction{
			BaseEntity:    row.Base(),
			Type:          finance.TransactionType(row.String("type")),
			Amount:        row.Decimal("amount"),
			Category:      row.String("category"),
			Description:   row.String("description"),
			PaymentMethod: shared.PaymentMethod(row.String("payment_method")),
			Date:          row.Time("date"),
			ReferenceID:   row.StringPtr("reference_id"),
			ReferenceType: finance.ReferenceType(row.String("reference_type")),
		}, nil
	},
	Encode: func(t *finance.Transaction) Row {
		row := BaseRow(t.BaseEntity)
		row["type"] = string(t.Type)
		row["amount"] = Money(t.Amount)
		row["category"] = t.Category
		row["description"] = t.Description
		row["payment_method"] = nullIfEmpty(string(t.PaymentMethod))
		row["date"] = FormatTime(t.Date)
		row["reference_id"] = NullString(t.ReferenceID)
		row["reference_type"] = nullIfEmpty(string(t.ReferenceType))
		return row
	},
}

// TransactionRepository stores cash movements and sums them in SQL
type TransactionRepository struct {
	*Repository[finance.Transaction]
}

// NewTransactionRepository creates a transaction repository
func NewTransactionRepository(s Session, opts ...RepositoryOption) *TransactionRepository {
	return &TransactionRepository{NewRepository(s, transactionMapper, opts...)}
}

// WithTx returns the repository bound to tx
func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{r.Repository.WithTx(tx)}
}

// dateRange limits date to [from, to). A zero bound is left open.
func dateRange(from, to time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !from.IsZero() {
			db = db.Where("date >= ?", FormatTime(from))
		}
		if !to.IsZero() {
			db = db.Where("date < ?", FormatTime(to))
		}
		return db
	}
}

const (
	incomeSum  = "COALESCE(SUM(CASE WHEN type = 'income' THEN ABS(amount) END), 0.0)"
	expenseSum = "COALESCE(SUM(CASE WHEN type = 'expense' THEN ABS(amount) END), 0.0)"
)

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// FindInRange returns transactions dated in [from, to), oldest first
func (r *TransactionRepository) FindInRange(ctx context.Context, from, to time.Time) ([]*finance.Transaction, error) {
	return r.Query(ctx, dateRange(from, to), func(db *gorm.DB) *gorm.DB {
		return db.Order("date ASC").Order("rowid ASC")
	})
}

// FindByReference returns the transactions that settle a document
func (r *TransactionRepository) FindByReference(ctx context.Context, refType finance.ReferenceType, refID string) ([]*finance.Transaction, error) {
	return r.Query(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("reference_type = ? AND reference_id = ?", string(refType), refID).Order("date ASC")
	})
}

// Totals sums income and expense dated in [from, to)
func (r *TransactionRepository) Totals(ctx context.Context, from, to time.Time) (finance.Totals, error) {
	db, err := r.Session().DB(ctx)
	if err != nil {
		return finance.Totals{}, err
	}
	var row struct {
		Income  float64
		Expense float64
		Count   int64
	}
	err = db.Table(r.Table()).
		Select(incomeSum + " AS income, " + expenseSum + " AS expense, COUNT(*) AS count").
		Scopes(dateRange(from, to)).
		Scan(&row).Error
	if err != nil {
		return finance.Totals{}, wrapError("aggregate", r.Table(), err)
	}
	income, expense := money(row.Income), money(row.Expense)
	return finance.Totals{
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
		Count:   row.Count,
	}, nil
}

// SumByCategory sums transactions dated in [from, to) per category, largest
// first. An empty txType sums both types by absolute amount.
func (r *TransactionRepository) SumByCategory(ctx context.Context, from, to time.Time, txType finance.TransactionType) ([]finance.CategoryTotal, error) {
	db, err := r.Session().DB(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Table(r.Table()).
		Select("category, COALESCE(SUM(ABS(amount)), 0.0) AS total, COUNT(*) AS count").
		Scopes(dateRange(from, to))
	if txType != "" {
		q = q.Where("type = ?", string(txType))
	}
	var rows []struct {
		Category string
		Total    float64
		Count    int64
	}
	if err := q.Group("category").Order("total DESC").Order("category ASC").Scan(&rows).Error; err != nil {
		return nil, wrapError("aggregate", r.Table(), err)
	}
	out := make([]finance.CategoryTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, finance.CategoryTotal{Category: row.Category, Total: money(row.Total), Count: row.Count})
	}
	return out, nil
}

// SumByPaymentMethod sums income and expense dated in [from, to) per payment method
func (r *TransactionRepository) SumByPaymentMethod(ctx context.Context, from, to time.Time) ([]finance.PaymentMethodTotal, error) {
	db, err := r.Session().DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		PaymentMethod string
		Income        float64
		Expense       float64
		Count         int64
	}
	err = db.Table(r.Table()).
		Select("COALESCE(payment_method, '') AS payment_method, " + incomeSum + " AS income, " +
			expenseSum + " AS expense, COUNT(*) AS count").
		Scopes(dateRange(from, to)).
		Group("COALESCE(payment_method, '')").
		Order("payment_method ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapError("aggregate", r.Table(), err)
	}
	out := make([]finance.PaymentMethodTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, finance.PaymentMethodTotal{
			PaymentMethod: shared.PaymentMethod(row.PaymentMethod),
			Income:        money(row.Income),
			Expense:       money(row.Expense),
			Count:         row.Count,
		})
	}
	return out, nil
}

// DailyTotals returns income and expense per UTC day in [from, to), oldest first.
// Days without transactions are left out.
func (r *TransactionRepository) DailyTotals(ctx context.Context, from, to time.Time) ([]finance.DailyTotal, error) {
	db, err := r.Session().DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Day     string
		Income  float64
		Expense float64
	}
	err = db.Table(r.Table()).
		Select("substr(date, 1, 10) AS day, " + incomeSum + " AS income, " + expenseSum + " AS expense").
		Scopes(dateRange(from, to)).
		Group("substr(date, 1, 10)").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapError("aggregate", r.Table(), err)
	}
	out := make([]finance.DailyTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, finance.DailyTotal{Day: row.Day, Income: money(row.Income), Expense: money(row.Expense)})
	}
	return out, nil
}
