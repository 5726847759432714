package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/partshop/backend/internal/domain/report"
	"github.com/partshop/backend/internal/domain/trade"
	"github.com/partshop/backend/internal/infrastructure/config"
	"github.com/partshop/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleDashboard() report.Dashboard {
	d := report.EmptyDashboard(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))
	d.Today.Revenue = decimal.NewFromInt(300)
	d.Today.Profit = decimal.NewFromInt(120)
	d.Today.PaidInvoiceCount = 1
	d.Stock.TotalParts = 2
	d.Stock.LowStockCount = 1
	d.Stock.LowStock = []report.StockAlert{{Name: "Brake pad", Quantity: 4, MinStockLevel: 5}}
	d.CashFlow.Net = decimal.NewFromInt(-300)
	d.InvoiceCount = 1
	d.StatusCounts[trade.InvoiceStatusPaid] = 1
	d.RecentInvoices = []report.InvoiceSummary{{
		InvoiceNumber: "INV_0001",
		Total:         decimal.NewFromInt(300),
		Date:          time.Date(2026, 10, 14, 11, 0, 0, 0, time.UTC),
		Status:        trade.InvoiceStatusPaid,
	}}
	return d
}

func TestWriteDashboardText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeDashboardText(&buf, sampleDashboard(), "INR"))

	out := buf.String()
	assert.Contains(t, out, "Generated 2026-10-14 12:00:00")
	assert.Contains(t, out, "revenue INR 300.00")
	assert.Contains(t, out, "profit INR 120.00")
	assert.Contains(t, out, "low  Brake pad: 4 of 5")
	assert.Contains(t, out, "net INR -300.00")
	assert.Contains(t, out, "INV_0001  2026-10-14")
}

func TestWriteDashboardJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeDashboardJSON(&buf, sampleDashboard()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(1), decoded["invoice_count"])
	assert.Contains(t, decoded, "cash_flow")
}

func TestPrintStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	conn := persistence.NewConnection(cfg.Database, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()
	require.NoError(t, conn.InitializeSchema(ctx))

	var buf bytes.Buffer
	require.NoError(t, printStatus(ctx, &buf, conn.Migrator()))
	assert.Contains(t, buf.String(), "consolidate_invoice_customer")
	assert.NotContains(t, buf.String(), "pending")
}

func TestDocumentSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Numbering.InvoicePrefix = "BILL-"
	cfg.Dashboard.OverdueAfterDays = 30

	s := documentSettings(cfg)
	assert.Equal(t, "BILL-", s.InvoicePrefix)
	assert.Equal(t, 30*24*time.Hour, s.OverdueAfter)

	dc := dashboardConfig(cfg)
	assert.Equal(t, 30*time.Second, dc.MinRefreshInterval)
	assert.Equal(t, 5, dc.RecentLimit)
}
