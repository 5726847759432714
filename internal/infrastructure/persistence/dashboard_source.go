package persistence

import (
	"context"
	"time"

	"github.com/partshop/backend/internal/domain/catalog"
	"github.com/partshop/backend/internal/domain/finance"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/partshop/backend/internal/domain/trade"
)

// DashboardSource reads the collections the dashboard is built from. Each
// read stands alone; they are not taken from one snapshot.
type DashboardSource struct {
	repos *Repositories
}

// NewDashboardSource creates a dashboard source over the bundle
func NewDashboardSource(repos *Repositories) *DashboardSource {
	return &DashboardSource{repos: repos}
}

// Invoices returns every invoice, newest first
func (s *DashboardSource) Invoices(ctx context.Context) ([]*trade.Invoice, error) {
	return s.repos.Invoices.FindAll(ctx, shared.FindOptions{OrderBy: "date", OrderDir: "desc"})
}

// InvoiceItems returns every invoice item
func (s *DashboardSource) InvoiceItems(ctx context.Context) ([]*trade.InvoiceItem, error) {
	return s.repos.Invoices.Items().FindAll(ctx, shared.FindOptions{OrderBy: "created_at", OrderDir: "asc"})
}

// Transactions returns the transactions dated in [from, to)
func (s *DashboardSource) Transactions(ctx context.Context, from, to time.Time) ([]*finance.Transaction, error) {
	return s.repos.Transactions.FindInRange(ctx, from, to)
}

// ActiveParts returns the parts on sale
func (s *DashboardSource) ActiveParts(ctx context.Context) ([]*catalog.Part, error) {
	return s.repos.Parts.FindActive(ctx)
}
