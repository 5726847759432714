package persistence

import (
	"context"
	"testing"
	"time"

	appreport "github.com/partshop/backend/internal/application/report"
	"github.com/partshop/backend/internal/domain/catalog"
	"github.com/partshop/backend/internal/domain/finance"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/partshop/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// A supplier delivers ten brake pads, three are sold for cash, and the
// dashboard reports the sale, the profit and the remaining stock.
func TestDashboard_EndToEnd(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()

	supplier := createSupplier(t, repos, "Bosch Distributors")
	part := createPart(t, repos, "Brake pad", 0, 5, 60, 100)
	purchase, err := repos.StockPurchases.CreateWithItems(ctx, trade.NewStockPurchase(supplier.ID),
		[]*trade.StockPurchaseItem{purchaseItem(part.ID, 10, 60)})
	require.NoError(t, err)
	require.Equal(t, 10, partQuantity(t, repos, part.ID))
	_, err = repos.RecordPurchasePayment(ctx, purchase.Purchase.ID, shared.PaymentMethodCash)
	require.NoError(t, err)

	inv := trade.NewInvoice(trade.Customer{Name: "Walk-in"})
	inv.Status = trade.InvoiceStatusPaid
	inv.PaymentMethod = shared.PaymentMethodCash
	sale, err := repos.Invoices.CreateWithItems(ctx, inv, []*trade.InvoiceItem{saleItem(part.ID, 3, 100)})
	require.NoError(t, err)
	require.Equal(t, 7, partQuantity(t, repos, part.ID))

	income := finance.NewIncome(sale.Invoice.Total, finance.CategorySales).
		WithReference(finance.ReferenceTypeInvoice, sale.Invoice.ID)
	_, err = repos.Transactions.Create(ctx, income)
	require.NoError(t, err)

	svc := appreport.NewDashboardService(NewDashboardSource(repos), appreport.DefaultDashboardConfig(), zap.NewNop())
	d := svc.Get(ctx)

	assert.True(t, d.Today.Revenue.Equal(decimal.NewFromInt(300)), d.Today.Revenue.String())
	assert.True(t, d.Today.Profit.Equal(decimal.NewFromInt(120)), d.Today.Profit.String())
	assert.Equal(t, 1, d.Today.PaidInvoiceCount)
	assert.Equal(t, 1, d.InvoiceCount)
	assert.Equal(t, 1, d.StatusCounts[trade.InvoiceStatusPaid])
	require.Len(t, d.RecentInvoices, 1)
	assert.Equal(t, "INV_0001", d.RecentInvoices[0].InvoiceNumber)

	assert.Equal(t, 1, d.Stock.TotalParts)
	assert.Zero(t, d.Stock.LowStockCount)
	assert.True(t, d.Stock.InventoryValue.Equal(decimal.NewFromInt(420)))

	assert.True(t, d.CashFlow.Income.Equal(decimal.NewFromInt(300)))
	assert.True(t, d.CashFlow.Expense.Equal(decimal.NewFromInt(600)))
	assert.True(t, d.CashFlow.Net.Equal(decimal.NewFromInt(-300)))

	_, err = repos.Invoices.CreateWithItems(ctx, trade.NewInvoice(trade.Customer{Name: "Second"}),
		[]*trade.InvoiceItem{saleItem(part.ID, 3, 100)})
	require.NoError(t, err)

	cached := svc.Get(ctx)
	assert.Equal(t, 1, cached.InvoiceCount, "served from cache within the refresh interval")
	refreshed := svc.Refresh(ctx)
	assert.Equal(t, 2, refreshed.InvoiceCount)
	assert.Equal(t, 1, refreshed.Stock.LowStockCount)
}

func TestDashboardSource_Reads(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()
	part := createPart(t, repos, "Spark plug", 5, 1, 40, 90)
	retired := createPart(t, repos, "Old plug", 5, 1, 40, 90)
	_, err := repos.Parts.Update(ctx, retired.ID, func(p *catalog.Part) { p.Status = catalog.PartStatusInactive })
	require.NoError(t, err)

	older := trade.NewInvoice(trade.Customer{Name: "First"})
	older.Date = time.Now().UTC().Add(-48 * time.Hour)
	_, err = repos.Invoices.CreateWithItems(ctx, older, []*trade.InvoiceItem{saleItem(part.ID, 1, 90)})
	require.NoError(t, err)
	_, err = repos.Invoices.CreateWithItems(ctx, trade.NewInvoice(trade.Customer{Name: "Second"}),
		[]*trade.InvoiceItem{saleItem(part.ID, 1, 90)})
	require.NoError(t, err)

	source := NewDashboardSource(repos)

	invoices, err := source.Invoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, "Second", invoices[0].Customer.Name)

	items, err := source.InvoiceItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	parts, err := source.ActiveParts(ctx)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, part.ID, parts[0].ID)

	txs, err := source.Transactions(ctx, time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, txs)
}
