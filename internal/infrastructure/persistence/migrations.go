package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/partshop/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration is one versioned change to existing data or layout
type Migration struct {
	Version int
	Name    string
	// DisableForeignKeys turns enforcement off around the migration's
	// transaction. SQLite ignores the pragma inside a transaction.
	DisableForeignKeys bool
	Up                 func(ctx context.Context, tx *gorm.DB) error
}

// AppliedMigration is a row of schema_migrations
type AppliedMigration struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// DefaultMigrations returns the migrations every database goes through
func DefaultMigrations() []Migration {
	return []Migration{
		{
			Version:            1,
			Name:               "consolidate_invoice_customer",
			DisableForeignKeys: true,
			Up:                 consolidateInvoiceCustomer,
		},
		{
			Version: 2,
			Name:    "backfill_purchase_supplier_snapshot",
			Up:      backfillPurchaseSupplierSnapshot,
		},
	}
}

// Migrator applies pending migrations in version order
type Migrator struct {
	session    Session
	log        *zap.Logger
	migrations []Migration
}

// NewMigrator creates a migrator over the given migrations
func NewMigrator(s Session, log *zap.Logger, migrations ...Migration) *Migrator {
	if log == nil {
		log = zap.NewNop()
	}
	sorted := append([]Migration(nil), migrations...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{session: s, log: log.Named("migrator"), migrations: sorted}
}

// Run applies every pending migration, each in its own transaction. A
// failing migration is logged, left unrecorded so the next start retries
// it, and does not stop the ones after it. The returned versions are those
// applied by this call. Only bookkeeping failures are returned.
func (m *Migrator) Run(ctx context.Context) ([]int, error) {
	done, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	applied := []int{}
	for _, mig := range m.migrations {
		if done[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			merr := &shared.MigrationError{Version: mig.Version, Name: mig.Name, Err: err}
			m.log.Error("migration failed",
				zap.Int("version", mig.Version),
				zap.String("name", mig.Name),
				zap.Error(merr),
			)
			continue
		}
		m.log.Info("migration applied", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		applied = append(applied, mig.Version)
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (err error) {
	if mig.Up == nil {
		return errors.New("migration has no Up step")
	}
	if mig.DisableForeignKeys {
		db, derr := m.session.DB(ctx)
		if derr != nil {
			return derr
		}
		if err := db.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
			return err
		}
		defer func() {
			if perr := db.Exec("PRAGMA foreign_keys = ON").Error; perr != nil && err == nil {
				err = perr
			}
		}()
	}
	return m.session.Transaction(ctx, func(tx *gorm.DB) error {
		if err := mig.Up(ctx, tx); err != nil {
			return err
		}
		return tx.Exec("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			mig.Version, mig.Name, FormatTime(time.Now())).Error
	})
}

// Applied lists the recorded migrations in version order
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	db, err := m.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := db.Table("schema_migrations").Order("version").Find(&rows).Error; err != nil {
		return nil, wrapError("select", "schema_migrations", err)
	}
	out := make([]AppliedMigration, 0, len(rows))
	for _, raw := range rows {
		row := Row(raw)
		out = append(out, AppliedMigration{
			Version:   row.Int("version"),
			Name:      row.String("name"),
			AppliedAt: row.Time("applied_at"),
		})
	}
	return out, nil
}

// Pending lists the migrations not yet recorded
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	done, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}
	return done, nil
}

// tableColumns returns the column names of table
func tableColumns(tx *gorm.DB, table string) (map[string]bool, error) {
	if !ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	var names []string
	if err := tx.Raw("SELECT name FROM pragma_table_info(?)", table).Scan(&names).Error; err != nil {
		return nil, err
	}
	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[n] = true
	}
	return cols, nil
}

// legacyCustomerColumns held the customer before it became one JSON column
var legacyCustomerColumns = []string{"customer_name", "customer_phone", "customer_email", "customer_address"}

// consolidateInvoiceCustomer rebuilds an invoices table that still has the
// flat customer columns. Missing values become empty strings.
func consolidateInvoiceCustomer(_ context.Context, tx *gorm.DB) error {
	cols, err := tableColumns(tx, "invoices")
	if err != nil {
		return err
	}
	legacy := false
	for _, c := range legacyCustomerColumns {
		legacy = legacy || cols[c]
	}
	if !legacy {
		return nil
	}

	text := func(col string) string {
		if cols[col] {
			return fmt.Sprintf("COALESCE(%s, '')", col)
		}
		return "''"
	}
	orDefault := func(col, def string) string {
		if cols[col] {
			return fmt.Sprintf("COALESCE(%s, %s)", col, def)
		}
		return def
	}
	nullable := func(col string) string {
		if cols[col] {
			return col
		}
		return "NULL"
	}

	customer := fmt.Sprintf("json_object('name', %s, 'phone', %s, 'email', %s, 'address', %s)",
		text("customer_name"), text("customer_phone"), text("customer_email"), text("customer_address"))

	columns := []string{
		"id", "created_at", "updated_at", "version",
		"invoice_number", "customer",
		"subtotal", "tax_amount", "discount_amount", "total",
		"date", "due_date", "status", "payment_method", "notes",
	}
	values := []string{
		"id",
		orDefault("created_at", nowSQL),
		orDefault("updated_at", nowSQL),
		orDefault("version", "1"),
		orDefault("invoice_number", "printf('INV_%04d', rowid)"),
		customer,
		orDefault("subtotal", "0"),
		orDefault("tax_amount", "0"),
		orDefault("discount_amount", "0"),
		orDefault("total", "0"),
		orDefault("date", nowSQL),
		nullable("due_date"),
		orDefault("status", "'draft'"),
		fmt.Sprintf("NULLIF(%s, '')", text("payment_method")),
		text("notes"),
	}

	statements := []string{
		"DROP TABLE IF EXISTS invoices_new",
		invoicesDDL("invoices_new"),
		fmt.Sprintf("INSERT INTO invoices_new (%s) SELECT %s FROM invoices",
			strings.Join(columns, ", "), strings.Join(values, ", ")),
		"DROP TABLE invoices",
		"ALTER TABLE invoices_new RENAME TO invoices",
	}
	for _, stmt := range statements {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}

	var violations []map[string]any
	if err := tx.Raw("PRAGMA foreign_key_check(invoice_items)").Scan(&violations).Error; err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("%d invoice items lost their invoice", len(violations))
	}
	return nil
}

// backfillPurchaseSupplierSnapshot copies the live supplier into purchases
// recorded without a snapshot
func backfillPurchaseSupplierSnapshot(_ context.Context, tx *gorm.DB) error {
	return tx.Exec(`UPDATE stock_purchases SET supplier_snapshot = (
		SELECT json_object(
			'name', s.name,
			'phone', COALESCE(s.phone, ''),
			'email', COALESCE(s.email, ''),
			'address', COALESCE(s.address, ''),
			'tax_id', COALESCE(s.tax_id, ''))
		FROM suppliers s WHERE s.id = stock_purchases.supplier_id)
	WHERE supplier_id IS NOT NULL
		AND COALESCE(json_extract(supplier_snapshot, '$.name'), '') = ''
		AND EXISTS (SELECT 1 FROM suppliers s WHERE s.id = stock_purchases.supplier_id)`).Error
}
