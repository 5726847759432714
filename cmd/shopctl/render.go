package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/partshop/backend/internal/domain/report"
	"github.com/partshop/backend/internal/domain/trade"
	"github.com/partshop/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func money(currency string, d decimal.Decimal) string {
	return printer.Sprintf("%s %.2f", currency, d.InexactFloat64())
}

func writeDashboardJSON(w io.Writer, d report.Dashboard) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func writeDashboardText(w io.Writer, d report.Dashboard, currency string) error {
	lines := []string{
		printer.Sprintf("Generated %s", d.GeneratedAt.Format("2006-01-02 15:04:05")),
		"",
	}
	for _, p := range []struct {
		name  string
		stats report.PeriodStats
	}{{"Today", d.Today}, {"This week", d.Week}, {"This month", d.Month}} {
		lines = append(lines, printer.Sprintf("%-11s revenue %s (%s%%)  profit %s (%s%%)  paid invoices %d",
			p.name,
			money(currency, p.stats.Revenue), p.stats.RevenueGrowth.StringFixed(2),
			money(currency, p.stats.Profit), p.stats.ProfitGrowth.StringFixed(2),
			p.stats.PaidInvoiceCount))
	}

	lines = append(lines, "",
		printer.Sprintf("Stock: %d parts, %d low, %d out, value %s",
			d.Stock.TotalParts, d.Stock.LowStockCount, d.Stock.OutOfStockCount, money(currency, d.Stock.InventoryValue)))
	for _, a := range d.Stock.LowStock {
		lines = append(lines, printer.Sprintf("  low  %s: %d of %d", a.Name, a.Quantity, a.MinStockLevel))
	}
	for _, a := range d.Stock.OutOfStock {
		lines = append(lines, printer.Sprintf("  out  %s", a.Name))
	}

	lines = append(lines, "",
		printer.Sprintf("Cash flow: income %s, expense %s, net %s",
			money(currency, d.CashFlow.Income), money(currency, d.CashFlow.Expense), money(currency, d.CashFlow.Net)),
		printer.Sprintf("Overdue: %d invoices, %s", d.Overdue.Count, money(currency, d.Overdue.Amount)),
		"",
		printer.Sprintf("Invoices: %d", d.InvoiceCount),
	)

	statuses := make([]trade.InvoiceStatus, 0, len(d.StatusCounts))
	for s := range d.StatusCounts {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	for _, s := range statuses {
		lines = append(lines, printer.Sprintf("  %-9s %d", s, d.StatusCounts[s]))
	}

	if len(d.RecentInvoices) > 0 {
		lines = append(lines, "", "Recent:")
		for _, inv := range d.RecentInvoices {
			lines = append(lines, printer.Sprintf("  %s  %s  %-8s %s",
				inv.InvoiceNumber, inv.Date.Format("2006-01-02"), inv.Status, money(currency, inv.Total)))
		}
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func printStatus(ctx context.Context, w io.Writer, m *persistence.Migrator) error {
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	for _, a := range applied {
		fmt.Fprintf(w, "applied  %3d  %-40s %s\n", a.Version, a.Name, a.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, p := range pending {
		fmt.Fprintf(w, "pending  %3d  %s\n", p.Version, p.Name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(w, "No migrations")
	}
	return nil
}
