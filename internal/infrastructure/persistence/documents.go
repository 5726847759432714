package persistence

import (
	"context"
	"time"

	"github.com/partshop/backend/internal/domain/trade"
	"gorm.io/gorm"
)

// DocumentSettings controls document numbering and derived statuses
type DocumentSettings struct {
	InvoicePrefix  string
	PurchasePrefix string
	OverdueAfter   time.Duration
}

// DefaultDocumentSettings returns INV_ and PO numbering with the default overdue window
func DefaultDocumentSettings() DocumentSettings {
	return DocumentSettings{
		InvoicePrefix:  trade.InvoiceNumberPrefix,
		PurchasePrefix: trade.PurchaseNumberPrefix,
		OverdueAfter:   trade.DefaultOverdueAfter,
	}
}

func (s DocumentSettings) withDefaults() DocumentSettings {
	d := DefaultDocumentSettings()
	if s.InvoicePrefix == "" {
		s.InvoicePrefix = d.InvoicePrefix
	}
	if s.PurchasePrefix == "" {
		s.PurchasePrefix = d.PurchasePrefix
	}
	if s.OverdueAfter <= 0 {
		s.OverdueAfter = d.OverdueAfter
	}
	return s
}

// nextNumber reads the numbers under prefix in column and returns the next one
func nextNumber(ctx context.Context, db *gorm.DB, table, column, prefix string) (string, error) {
	var numbers []string
	err := db.WithContext(ctx).Table(table).
		Where(column+` LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Pluck(column, &numbers).Error
	if err != nil {
		return "", wrapError("select", table, err)
	}
	return trade.NextSequenceNumber(prefix, numbers), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
