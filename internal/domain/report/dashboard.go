package report

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/partshop/backend/internal/domain/catalog"
	"github.com/partshop/backend/internal/domain/finance"
	"github.com/partshop/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// Dashboard is the read model shown on the home screen.
// It is rebuilt from raw collections and never stored.
type Dashboard struct {
	GeneratedAt    time.Time                   `json:"generated_at"`
	Today          PeriodStats                 `json:"today"`
	Week           PeriodStats                 `json:"week"`
	Month          PeriodStats                 `json:"month"`
	Stock          StockSummary                `json:"stock"`
	Overdue        OverdueSummary              `json:"overdue"`
	CashFlow       CashFlow                    `json:"cash_flow"`
	StatusCounts   map[trade.InvoiceStatus]int `json:"status_counts"`
	RecentInvoices []InvoiceSummary            `json:"recent_invoices"`
	InvoiceCount   int                         `json:"invoice_count"`
}

// PeriodStats compares one period with the period just before it.
// Growth values are percentages.
type PeriodStats struct {
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	Revenue          decimal.Decimal `json:"revenue"`
	Profit           decimal.Decimal `json:"profit"`
	PaidInvoiceCount int             `json:"paid_invoice_count"`
	PreviousRevenue  decimal.Decimal `json:"previous_revenue"`
	PreviousProfit   decimal.Decimal `json:"previous_profit"`
	RevenueGrowth    decimal.Decimal `json:"revenue_growth"`
	ProfitGrowth     decimal.Decimal `json:"profit_growth"`
}

// StockSummary counts parts needing attention
type StockSummary struct {
	TotalParts      int             `json:"total_parts"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
	InventoryValue  decimal.Decimal `json:"inventory_value"`
	LowStock        []StockAlert    `json:"low_stock"`
	OutOfStock      []StockAlert    `json:"out_of_stock"`
}

// StockAlert names a part whose stock is low or gone
type StockAlert struct {
	PartID        string `json:"part_id"`
	Name          string `json:"name"`
	PartNumber    string `json:"part_number"`
	Quantity      int    `json:"quantity"`
	MinStockLevel int    `json:"min_stock_level"`
}

// OverdueSummary lists invoices reported as overdue at build time
type OverdueSummary struct {
	Count    int              `json:"count"`
	Amount   decimal.Decimal  `json:"amount"`
	Invoices []InvoiceSummary `json:"invoices"`
}

// CashFlow is income against expense for the current month
type CashFlow struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// InvoiceSummary is the short form of an invoice used in lists
type InvoiceSummary struct {
	ID            string              `json:"id"`
	InvoiceNumber string              `json:"invoice_number"`
	CustomerName  string              `json:"customer_name"`
	Total         decimal.Decimal     `json:"total"`
	Date          time.Time           `json:"date"`
	Status        trade.InvoiceStatus `json:"status"`
}

// DashboardInput holds the raw collections the dashboard is built from.
// Parts is expected to hold active parts only.
type DashboardInput struct {
	Invoices     []*trade.Invoice
	Items        []*trade.InvoiceItem
	Transactions []*finance.Transaction
	Parts        []*catalog.Part
}

// Options controls how the dashboard is built
type Options struct {
	Now          time.Time
	Location     *time.Location
	OverdueAfter time.Duration
	RecentLimit  int
}

// DefaultOptions returns options for a dashboard built now in UTC
func DefaultOptions() Options {
	return Options{
		Now:          time.Now().UTC(),
		Location:     time.UTC,
		OverdueAfter: trade.DefaultOverdueAfter,
		RecentLimit:  5,
	}
}

// EmptyDashboard returns a zero-valued dashboard with every collection
// non-nil, so it can be rendered as is.
func EmptyDashboard(now time.Time) Dashboard {
	return Dashboard{
		GeneratedAt:    now,
		Stock:          StockSummary{LowStock: []StockAlert{}, OutOfStock: []StockAlert{}},
		Overdue:        OverdueSummary{Invoices: []InvoiceSummary{}},
		StatusCounts:   map[trade.InvoiceStatus]int{},
		RecentInvoices: []InvoiceSummary{},
	}
}

// Clone returns a copy that shares no maps or slices with d
func (d Dashboard) Clone() Dashboard {
	c := d
	c.Stock.LowStock = slices.Clone(d.Stock.LowStock)
	c.Stock.OutOfStock = slices.Clone(d.Stock.OutOfStock)
	c.Overdue.Invoices = slices.Clone(d.Overdue.Invoices)
	c.RecentInvoices = slices.Clone(d.RecentInvoices)
	c.StatusCounts = maps.Clone(d.StatusCounts)
	return c
}

// Growth returns (current - previous) / previous x 100 rounded to two
// places, or zero when previous is zero.
func Growth(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
}

// ItemProfit returns (unit_price - purchase_price) x quantity, or zero when
// the part is unknown.
func ItemProfit(item *trade.InvoiceItem, part *catalog.Part) decimal.Decimal {
	if item == nil || part == nil {
		return decimal.Zero
	}
	return item.UnitPrice.Sub(part.PurchasePrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Period is a half-open time range [Start, End)
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the period
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// DayPeriods returns today and yesterday
func DayPeriods(now time.Time, loc *time.Location) (current, previous Period) {
	n := now.In(loc)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	return Period{start, start.AddDate(0, 0, 1)}, Period{start.AddDate(0, 0, -1), start}
}

// WeekPeriods returns this ISO week (Monday first) and the week before
func WeekPeriods(now time.Time, loc *time.Location) (current, previous Period) {
	day, _ := DayPeriods(now, loc)
	offset := (int(day.Start.Weekday()) + 6) % 7
	start := day.Start.AddDate(0, 0, -offset)
	return Period{start, start.AddDate(0, 0, 7)}, Period{start.AddDate(0, 0, -7), start}
}

// MonthPeriods returns this calendar month and the whole previous month
func MonthPeriods(now time.Time, loc *time.Location) (current, previous Period) {
	n := now.In(loc)
	start := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
	return Period{start, start.AddDate(0, 1, 0)}, Period{start.AddDate(0, -1, 0), start}
}

// BuildDashboard reduces the raw collections into a Dashboard. It does not
// touch storage and does not modify its input.
func BuildDashboard(in DashboardInput, opts Options) Dashboard {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.OverdueAfter <= 0 {
		opts.OverdueAfter = trade.DefaultOverdueAfter
	}

	d := EmptyDashboard(opts.Now)
	d.InvoiceCount = len(in.Invoices)

	parts := make(map[string]*catalog.Part, len(in.Parts))
	for _, p := range in.Parts {
		if p != nil {
			parts[p.ID] = p
		}
	}
	itemsByInvoice := make(map[string][]*trade.InvoiceItem)
	for _, it := range in.Items {
		if it != nil {
			itemsByInvoice[it.InvoiceID] = append(itemsByInvoice[it.InvoiceID], it)
		}
	}

	paid := make([]*trade.Invoice, 0, len(in.Invoices))
	for _, inv := range in.Invoices {
		if inv == nil {
			continue
		}
		status := trade.DeriveStatus(inv.Status, inv.Date, opts.Now, opts.OverdueAfter)
		d.StatusCounts[status]++
		if status == trade.InvoiceStatusOverdue {
			d.Overdue.Count++
			d.Overdue.Amount = d.Overdue.Amount.Add(inv.Total)
			d.Overdue.Invoices = append(d.Overdue.Invoices, summarize(inv, status))
		}
		if inv.Status.IsPaidEquivalent() {
			paid = append(paid, inv)
		}
	}

	invoiceProfit := func(inv *trade.Invoice) decimal.Decimal {
		total := decimal.Zero
		for _, it := range itemsByInvoice[inv.ID] {
			total = total.Add(ItemProfit(it, parts[derefString(it.PartID)]))
		}
		return total
	}
	periodStats := func(current, previous Period) PeriodStats {
		s := PeriodStats{Start: current.Start, End: current.End}
		for _, inv := range paid {
			switch {
			case current.Contains(inv.Date):
				s.Revenue = s.Revenue.Add(inv.Total)
				s.Profit = s.Profit.Add(invoiceProfit(inv))
				s.PaidInvoiceCount++
			case previous.Contains(inv.Date):
				s.PreviousRevenue = s.PreviousRevenue.Add(inv.Total)
				s.PreviousProfit = s.PreviousProfit.Add(invoiceProfit(inv))
			}
		}
		s.RevenueGrowth = Growth(s.Revenue, s.PreviousRevenue)
		s.ProfitGrowth = Growth(s.Profit, s.PreviousProfit)
		return s
	}
	d.Today = periodStats(DayPeriods(opts.Now, opts.Location))
	d.Week = periodStats(WeekPeriods(opts.Now, opts.Location))
	month, prevMonth := MonthPeriods(opts.Now, opts.Location)
	d.Month = periodStats(month, prevMonth)

	for _, tx := range in.Transactions {
		if tx == nil || !month.Contains(tx.Date) {
			continue
		}
		switch tx.Type {
		case finance.TransactionTypeIncome:
			d.CashFlow.Income = d.CashFlow.Income.Add(tx.Amount.Abs())
		case finance.TransactionTypeExpense:
			d.CashFlow.Expense = d.CashFlow.Expense.Add(tx.Amount.Abs())
		}
	}
	d.CashFlow.Net = d.CashFlow.Income.Sub(d.CashFlow.Expense)

	d.Stock = buildStock(in.Parts)
	d.RecentInvoices = recentInvoices(in.Invoices, opts)
	sortSummaries(d.Overdue.Invoices)
	return d
}

func buildStock(parts []*catalog.Part) StockSummary {
	s := StockSummary{LowStock: []StockAlert{}, OutOfStock: []StockAlert{}}
	for _, p := range parts {
		if p == nil {
			continue
		}
		s.TotalParts++
		s.InventoryValue = s.InventoryValue.Add(p.StockValue())
		alert := StockAlert{
			PartID:        p.ID,
			Name:          p.Name,
			PartNumber:    p.PartNumber,
			Quantity:      p.Quantity,
			MinStockLevel: p.MinStockLevel,
		}
		switch {
		case p.IsOutOfStock():
			s.OutOfStock = append(s.OutOfStock, alert)
		case p.IsLowStock():
			s.LowStock = append(s.LowStock, alert)
		}
	}
	s.LowStockCount = len(s.LowStock)
	s.OutOfStockCount = len(s.OutOfStock)
	sort.SliceStable(s.LowStock, func(i, j int) bool { return s.LowStock[i].Quantity < s.LowStock[j].Quantity })
	sort.SliceStable(s.OutOfStock, func(i, j int) bool { return s.OutOfStock[i].Name < s.OutOfStock[j].Name })
	return s
}

func recentInvoices(invoices []*trade.Invoice, opts Options) []InvoiceSummary {
	out := make([]InvoiceSummary, 0, len(invoices))
	for _, inv := range invoices {
		if inv != nil {
			out = append(out, summarize(inv, trade.DeriveStatus(inv.Status, inv.Date, opts.Now, opts.OverdueAfter)))
		}
	}
	sortSummaries(out)
	if opts.RecentLimit > 0 && len(out) > opts.RecentLimit {
		out = out[:opts.RecentLimit]
	}
	return out
}

func summarize(inv *trade.Invoice, status trade.InvoiceStatus) InvoiceSummary {
	return InvoiceSummary{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.Customer.Name,
		Total:         inv.Total,
		Date:          inv.Date,
		Status:        status,
	}
}

// newest first
func sortSummaries(s []InvoiceSummary) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.After(s[j].Date) })
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
