package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/partshop/backend/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestSchema_InitializeIsIdempotent(t *testing.T) {
	conn := newTestConnection(t)
	ctx := context.Background()

	require.NoError(t, conn.InitializeSchema(ctx))

	applied, err := conn.Migrator().Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, 1, applied[0].Version)
	assert.Equal(t, "consolidate_invoice_customer", applied[0].Name)
	assert.False(t, applied[0].AppliedAt.IsZero())

	pending, err := conn.Migrator().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSchema_CreatesEveryTable(t *testing.T) {
	conn := newTestConnection(t)

	var tables []string
	require.NoError(t, rawDB(t, conn).Raw("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name").Scan(&tables).Error)
	for _, want := range append(MutableTables, "audit_log", "schema_migrations") {
		assert.Contains(t, tables, want)
	}

	var triggers int64
	require.NoError(t, rawDB(t, conn).Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger'").Scan(&triggers).Error)
	assert.Equal(t, int64(len(MutableTables)+len(stockTriggers)), triggers)
}

func TestSchema_ForeignKeysEnforced(t *testing.T) {
	conn := newTestConnection(t)

	var on int
	require.NoError(t, rawDB(t, conn).Raw("PRAGMA foreign_keys").Scan(&on).Error)
	assert.Equal(t, 1, on)
}

func TestMigration_ConsolidatesLegacyInvoiceCustomer(t *testing.T) {
	conn := NewConnection(memoryConfig(), zap.NewNop())
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()
	db := rawDB(t, conn)

	require.NoError(t, db.Exec(`CREATE TABLE invoices (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		customer_name TEXT,
		customer_phone TEXT,
		customer_address TEXT,
		total REAL,
		date TEXT,
		status TEXT,
		payment_method TEXT
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO invoices VALUES
		('inv-1', 'INV_0001', 'Ravi Kumar', '9876543210', NULL, 450.5, '2026-01-05 10:00:00.000', 'paid', ''),
		('inv-2', 'INV_0002', NULL, NULL, 'Old Town', 120, '2026-01-06 10:00:00.000', NULL, 'cash')`).Error)
	require.NoError(t, execAll(db, "create tables", tableStatements))
	require.NoError(t, db.Exec(`INSERT INTO invoice_items (id, created_at, updated_at, invoice_id, quantity, unit_price, line_total)
		VALUES ('item-1', '2026-01-05 10:00:00.000', '2026-01-05 10:00:00.000', 'inv-1', 1, 450.5, 450.5)`).Error)

	require.NoError(t, conn.InitializeSchema(ctx))

	cols, err := tableColumns(db, "invoices")
	require.NoError(t, err)
	assert.True(t, cols["customer"])
	assert.False(t, cols["customer_name"])

	repos := NewRepositories(conn, DefaultDocumentSettings())
	first, err := repos.Invoices.FindWithItems(ctx, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, trade.Customer{Name: "Ravi Kumar", Phone: "9876543210"}, first.Invoice.Customer)
	assert.Equal(t, trade.InvoiceStatusPaid, first.Invoice.Status)
	assert.Empty(t, first.Invoice.PaymentMethod)
	assert.Equal(t, 1, first.Invoice.Version)
	require.Len(t, first.Items, 1)

	second, err := repos.Invoices.FindByID(ctx, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, trade.Customer{Address: "Old Town"}, second.Customer)
	assert.Equal(t, trade.InvoiceStatusDraft, second.Status)
	assert.Equal(t, "cash", string(second.PaymentMethod))

	var on int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&on).Error)
	assert.Equal(t, 1, on, "enforcement is restored after the rebuild")

	next, err := repos.Invoices.GenerateNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV_0003", next)
}

func TestMigration_BackfillsPurchaseSupplierSnapshot(t *testing.T) {
	conn := NewConnection(memoryConfig(), zap.NewNop())
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()
	db := rawDB(t, conn)

	require.NoError(t, execAll(db, "create tables", tableStatements))
	require.NoError(t, db.Exec(`INSERT INTO suppliers (id, created_at, updated_at, name, phone)
		VALUES ('sup-1', '2026-01-01 00:00:00.000', '2026-01-01 00:00:00.000', 'Bosch', '9000000000')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO stock_purchases (id, created_at, updated_at, purchase_number, supplier_id, purchase_date)
		VALUES ('po-1', '2026-01-01 00:00:00.000', '2026-01-01 00:00:00.000', 'PO-26-01-0001', 'sup-1', '2026-01-01 00:00:00.000')`).Error)

	require.NoError(t, conn.InitializeSchema(ctx))

	repos := NewRepositories(conn, DefaultDocumentSettings())
	p, err := repos.StockPurchases.FindByID(ctx, "po-1")
	require.NoError(t, err)
	assert.Equal(t, "Bosch", p.SupplierSnapshot.Name)
	assert.Equal(t, "9000000000", p.SupplierSnapshot.Phone)
}

func TestMigrator_FailureIsLoggedAndSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	broken := errors.New("column missing")
	migrations := []Migration{
		{Version: 2, Name: "add_report_table", Up: func(_ context.Context, tx *gorm.DB) error {
			return tx.Exec("CREATE TABLE reports (id TEXT PRIMARY KEY)").Error
		}},
		{Version: 1, Name: "broken", Up: func(_ context.Context, tx *gorm.DB) error {
			if err := tx.Exec("CREATE TABLE half_done (id TEXT)").Error; err != nil {
				return err
			}
			return broken
		}},
	}
	conn := NewConnection(memoryConfig(), zap.New(core), WithMigrations(migrations))
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()

	require.NoError(t, conn.InitializeSchema(ctx))

	failures := logs.FilterMessage("migration failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
	assert.Equal(t, int64(1), failures[0].ContextMap()["version"])
	assert.Contains(t, failures[0].ContextMap()["error"], "column missing")
	assert.Len(t, logs.FilterMessage("migration applied").All(), 1)

	applied, err := conn.Migrator().Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, 2, applied[0].Version)

	pending, err := conn.Migrator().Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "broken", pending[0].Name)

	var leftovers int64
	require.NoError(t, rawDB(t, conn).Raw("SELECT COUNT(*) FROM sqlite_master WHERE name = 'half_done'").Scan(&leftovers).Error)
	assert.Zero(t, leftovers, "a failed migration is rolled back")
}
