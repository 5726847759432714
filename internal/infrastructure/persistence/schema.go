package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// nowSQL renders the current UTC time the way FormatTime does
const nowSQL = `strftime('%Y-%m-%d %H:%M:%f', 'now')`

const baseColumnsDDL = `id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1`

const paymentMethodCheck = `CHECK (payment_method IS NULL OR payment_method IN
		('cash', 'card', 'upi', 'bank_transfer', 'cheque', 'credit', 'other'))`

// invoicesDDL is shared with the migration that rebuilds the invoices table
func invoicesDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	invoice_number TEXT NOT NULL UNIQUE,
	customer TEXT NOT NULL DEFAULT '{}',
	subtotal REAL NOT NULL DEFAULT 0 CHECK (subtotal >= 0),
	tax_amount REAL NOT NULL DEFAULT 0 CHECK (tax_amount >= 0),
	discount_amount REAL NOT NULL DEFAULT 0 CHECK (discount_amount >= 0),
	total REAL NOT NULL DEFAULT 0 CHECK (total >= 0),
	date TEXT NOT NULL,
	due_date TEXT,
	status TEXT NOT NULL DEFAULT 'draft'
		CHECK (status IN ('draft', 'sent', 'paid', 'partially_paid', 'overdue', 'cancelled')),
	payment_method TEXT %s,
	notes TEXT NOT NULL DEFAULT ''
)`, table, baseColumnsDDL, paymentMethodCheck)
}

var tableStatements = []string{
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS suppliers (
	%s,
	name TEXT NOT NULL,
	contact_person TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	tax_id TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1 CHECK (is_active IN (0, 1))
)`, baseColumnsDDL),

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS categories (
	%s,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_id TEXT REFERENCES categories(id) ON DELETE SET NULL
)`, baseColumnsDDL),

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS parts (
	%s,
	name TEXT NOT NULL,
	part_number TEXT NOT NULL DEFAULT '',
	brand TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
	supplier_id TEXT REFERENCES suppliers(id) ON DELETE SET NULL,
	purchase_price REAL NOT NULL DEFAULT 0 CHECK (purchase_price >= 0),
	selling_price REAL NOT NULL DEFAULT 0 CHECK (selling_price >= 0),
	mrp REAL NOT NULL DEFAULT 0 CHECK (mrp >= 0),
	quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	min_stock_level INTEGER NOT NULL DEFAULT 0 CHECK (min_stock_level >= 0),
	unit TEXT NOT NULL DEFAULT 'pcs',
	location TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'discontinued'))
)`, baseColumnsDDL),

	invoicesDDL("invoices"),

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS invoice_items (
	%s,
	invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	part_id TEXT REFERENCES parts(id) ON DELETE SET NULL,
	description TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	unit_price REAL NOT NULL DEFAULT 0 CHECK (unit_price >= 0),
	discount_percent REAL NOT NULL DEFAULT 0 CHECK (discount_percent BETWEEN 0 AND 100),
	tax_percent REAL NOT NULL DEFAULT 0 CHECK (tax_percent BETWEEN 0 AND 100),
	line_total REAL NOT NULL DEFAULT 0 CHECK (line_total >= 0)
)`, baseColumnsDDL),

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stock_purchases (
	%s,
	purchase_number TEXT NOT NULL UNIQUE,
	supplier_id TEXT REFERENCES suppliers(id) ON DELETE SET NULL,
	supplier_snapshot TEXT NOT NULL DEFAULT '{}',
	purchase_date TEXT NOT NULL,
	subtotal REAL NOT NULL DEFAULT 0 CHECK (subtotal >= 0),
	tax_amount REAL NOT NULL DEFAULT 0 CHECK (tax_amount >= 0),
	discount_amount REAL NOT NULL DEFAULT 0 CHECK (discount_amount >= 0),
	total REAL NOT NULL DEFAULT 0 CHECK (total >= 0),
	status TEXT NOT NULL DEFAULT 'received' CHECK (status IN ('pending', 'received', 'cancelled')),
	payment_status TEXT NOT NULL DEFAULT 'unpaid' CHECK (payment_status IN ('unpaid', 'partial', 'paid')),
	payment_method TEXT %s,
	notes TEXT NOT NULL DEFAULT ''
)`, baseColumnsDDL, paymentMethodCheck),

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stock_purchase_items (
	%s,
	purchase_id TEXT NOT NULL REFERENCES stock_purchases(id) ON DELETE CASCADE,
	part_id TEXT REFERENCES parts(id) ON DELETE SET NULL,
	description TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	unit_cost REAL NOT NULL DEFAULT 0 CHECK (unit_cost >= 0),
	tax_percent REAL NOT NULL DEFAULT 0 CHECK (tax_percent BETWEEN 0 AND 100),
	line_total REAL NOT NULL DEFAULT 0 CHECK (line_total >= 0)
)`, baseColumnsDDL),

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS transactions (
	%s,
	type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	amount REAL NOT NULL CHECK (amount <> 0),
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	payment_method TEXT %s,
	date TEXT NOT NULL,
	reference_id TEXT,
	reference_type TEXT CHECK (reference_type IS NULL OR reference_type IN ('invoice', 'purchase', 'expense'))
)`, baseColumnsDDL, paymentMethodCheck),

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
	%s,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'owner' CHECK (role IN ('owner', 'manager', 'staff')),
	pin_hash TEXT
)`, baseColumnsDDL),

	`CREATE TABLE IF NOT EXISTS shop_settings (
	id TEXT PRIMARY KEY CHECK (id = 'shop'),
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	shop_name TEXT NOT NULL,
	owner_name TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	tax_id TEXT NOT NULL DEFAULT '',
	currency TEXT NOT NULL DEFAULT 'INR',
	default_tax_percent REAL NOT NULL DEFAULT 0 CHECK (default_tax_percent BETWEEN 0 AND 100),
	invoice_footer TEXT NOT NULL DEFAULT '',
	low_stock_default INTEGER NOT NULL DEFAULT 5 CHECK (low_stock_default >= 0)
)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	record_id TEXT NOT NULL,
	operation TEXT NOT NULL CHECK (operation IN ('INSERT', 'UPDATE', 'DELETE')),
	old_values TEXT,
	new_values TEXT,
	actor TEXT NOT NULL DEFAULT 'system',
	created_at TEXT NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_name ON parts(name)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_category ON parts(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_supplier ON parts(supplier_id)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_status ON parts(status)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices(date)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_part ON invoice_items(part_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_purchases_date ON stock_purchases(purchase_date)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_purchases_supplier ON stock_purchases(supplier_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_purchase_items_purchase ON stock_purchase_items(purchase_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_purchase_items_part ON stock_purchase_items(part_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference_type, reference_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_record ON audit_log(table_name, record_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
}

// MutableTables have their updated_at and version kept current by a touch
// trigger whenever a writer changes a row without bumping version.
var MutableTables = []string{
	"suppliers",
	"categories",
	"parts",
	"invoices",
	"invoice_items",
	"stock_purchases",
	"stock_purchase_items",
	"transactions",
	"users",
	"shop_settings",
}

func touchTrigger(table string) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS trg_%[1]s_touch
AFTER UPDATE ON %[1]s
FOR EACH ROW WHEN NEW.version = OLD.version
BEGIN
	UPDATE %[1]s SET updated_at = %[2]s, version = OLD.version + 1 WHERE id = NEW.id;
END`, table, nowSQL)
}

var stockTriggers = []string{
	// A sale takes its quantity out of stock. The quantity CHECK on parts
	// rejects the item, and with it the invoice, when stock would go negative.
	`CREATE TRIGGER IF NOT EXISTS trg_invoice_items_stock_out
AFTER INSERT ON invoice_items
FOR EACH ROW WHEN NEW.part_id IS NOT NULL
BEGIN
	UPDATE parts SET quantity = quantity - NEW.quantity WHERE id = NEW.part_id;
END`,

	// Purchased quantity is added once the goods are received
	`CREATE TRIGGER IF NOT EXISTS trg_stock_purchase_items_stock_in
AFTER INSERT ON stock_purchase_items
FOR EACH ROW WHEN NEW.part_id IS NOT NULL
	AND (SELECT status FROM stock_purchases WHERE id = NEW.purchase_id) = 'received'
BEGIN
	UPDATE parts SET quantity = quantity + NEW.quantity WHERE id = NEW.part_id;
END`,

	`CREATE TRIGGER IF NOT EXISTS trg_stock_purchases_received
AFTER UPDATE OF status ON stock_purchases
FOR EACH ROW WHEN OLD.status = 'pending' AND NEW.status = 'received'
BEGIN
	UPDATE parts SET quantity = quantity + (
		SELECT COALESCE(SUM(i.quantity), 0) FROM stock_purchase_items i
		WHERE i.purchase_id = NEW.id AND i.part_id = parts.id
	)
	WHERE id IN (SELECT part_id FROM stock_purchase_items WHERE purchase_id = NEW.id AND part_id IS NOT NULL);
END`,
}

// Schema creates and upgrades the database layout
type Schema struct {
	log        *zap.Logger
	migrations []Migration
}

// NewSchema creates a schema manager running the given migrations
func NewSchema(log *zap.Logger, migrations ...Migration) *Schema {
	if log == nil {
		log = zap.NewNop()
	}
	return &Schema{log: log, migrations: migrations}
}

// Initialize creates tables, runs pending migrations, then creates indexes
// and triggers. Every statement is idempotent. A failing migration is
// logged and skipped; any other failure is returned.
func (s *Schema) Initialize(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := execAll(db, "create tables", tableStatements); err != nil {
		return err
	}

	applied, err := NewMigrator(SessionFor(db), s.log, s.migrations...).Run(ctx)
	if err != nil {
		return err
	}

	if err := execAll(db, "create indexes", indexStatements); err != nil {
		return err
	}
	triggers := make([]string, 0, len(MutableTables)+len(stockTriggers))
	for _, t := range MutableTables {
		triggers = append(triggers, touchTrigger(t))
	}
	triggers = append(triggers, stockTriggers...)
	if err := execAll(db, "create triggers", triggers); err != nil {
		return err
	}

	s.log.Info("schema initialized", zap.Ints("migrations_applied", applied))
	return nil
}

func execAll(db *gorm.DB, op string, statements []string) error {
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return wrapError(op, "", err)
		}
	}
	return nil
}
