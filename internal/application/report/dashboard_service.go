package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/partshop/backend/internal/domain/catalog"
	"github.com/partshop/backend/internal/domain/finance"
	"github.com/partshop/backend/internal/domain/report"
	"github.com/partshop/backend/internal/domain/trade"
	"go.uber.org/zap"
)

// DashboardSource provides the collections a dashboard is built from
type DashboardSource interface {
	Invoices(ctx context.Context) ([]*trade.Invoice, error)
	InvoiceItems(ctx context.Context) ([]*trade.InvoiceItem, error)
	Transactions(ctx context.Context, from, to time.Time) ([]*finance.Transaction, error)
	ActiveParts(ctx context.Context) ([]*catalog.Part, error)
}

// DashboardConfig tunes the dashboard service
type DashboardConfig struct {
	// MinRefreshInterval is how long a built dashboard is served before Get reads again
	MinRefreshInterval time.Duration
	OverdueAfter       time.Duration
	RecentLimit        int
	Location           *time.Location
}

// DefaultDashboardConfig returns a 30 second refresh interval with the default report options
func DefaultDashboardConfig() DashboardConfig {
	opts := report.DefaultOptions()
	return DashboardConfig{
		MinRefreshInterval: 30 * time.Second,
		OverdueAfter:       opts.OverdueAfter,
		RecentLimit:        opts.RecentLimit,
		Location:           opts.Location,
	}
}

// DashboardOption configures a DashboardService
type DashboardOption func(*DashboardService)

// WithClock sets the clock used for periods and the refresh interval
func WithClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) {
		s.now = now
	}
}

// DashboardService builds dashboards and serves the last one until the
// refresh interval has passed. A failed read yields an empty dashboard
// that is not cached.
type DashboardService struct {
	source DashboardSource
	cfg    DashboardConfig
	log    *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	snapshot   *report.Dashboard
	fetchedAt  time.Time
	generation uint64
}

// NewDashboardService creates a dashboard service
func NewDashboardService(source DashboardSource, cfg DashboardConfig, log *zap.Logger, opts ...DashboardOption) *DashboardService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &DashboardService{
		source: source,
		cfg:    cfg,
		log:    log.Named("dashboard"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached dashboard while it is younger than the refresh
// interval, and builds a new one otherwise
func (s *DashboardService) Get(ctx context.Context) report.Dashboard {
	s.mu.Lock()
	if s.snapshot != nil && s.now().Sub(s.fetchedAt) < s.cfg.MinRefreshInterval {
		d := s.snapshot.Clone()
		s.mu.Unlock()
		return d
	}
	s.mu.Unlock()
	return s.fetch(ctx)
}

// Refresh builds a new dashboard regardless of the refresh interval
func (s *DashboardService) Refresh(ctx context.Context) report.Dashboard {
	return s.fetch(ctx)
}

// Invalidate drops the cached dashboard. Fetches already running when it
// is called do not repopulate the cache.
func (s *DashboardService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.generation++
}

// LastFetched returns when the cached dashboard was built, or the zero time
func (s *DashboardService) LastFetched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

func (s *DashboardService) fetch(ctx context.Context) report.Dashboard {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	now := s.now()
	d, err := s.build(ctx, now)
	if err != nil {
		s.log.Warn("dashboard read failed, serving empty dashboard", zap.Error(err))
		return report.EmptyDashboard(now)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.log.Debug("dashboard superseded by a newer fetch", zap.Uint64("generation", gen))
		return d
	}
	cached := d.Clone()
	s.snapshot = &cached
	s.fetchedAt = now
	return d
}

func (s *DashboardService) build(ctx context.Context, now time.Time) (report.Dashboard, error) {
	invoices, err := s.source.Invoices(ctx)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("load invoices: %w", err)
	}
	items, err := s.source.InvoiceItems(ctx)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("load invoice items: %w", err)
	}
	month, _ := report.MonthPeriods(now, s.cfg.Location)
	transactions, err := s.source.Transactions(ctx, month.Start, month.End)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("load transactions: %w", err)
	}
	parts, err := s.source.ActiveParts(ctx)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("load parts: %w", err)
	}

	return report.BuildDashboard(report.DashboardInput{
		Invoices:     invoices,
		Items:        items,
		Transactions: transactions,
		Parts:        parts,
	}, report.Options{
		Now:          now,
		Location:     s.cfg.Location,
		OverdueAfter: s.cfg.OverdueAfter,
		RecentLimit:  s.cfg.RecentLimit,
	}), nil
}
