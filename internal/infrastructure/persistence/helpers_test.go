package persistence

import (
	"context"
	"testing"

	"github.com/partshop/backend/internal/domain/catalog"
	"github.com/partshop/backend/internal/domain/partner"
	"github.com/partshop/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func memoryConfig() config.DatabaseConfig {
	cfg := config.Default().Database
	cfg.Path = ":memory:"
	return cfg
}

// newTestConnection opens an in-memory database with the full schema
func newTestConnection(t *testing.T, opts ...ConnectionOption) *Connection {
	t.Helper()
	conn := NewConnection(memoryConfig(), zaptest.NewLogger(t), opts...)
	require.NoError(t, conn.InitializeSchema(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newTestRepositories(t *testing.T) (*Connection, *Repositories) {
	t.Helper()
	conn := newTestConnection(t)
	return conn, NewRepositories(conn, DefaultDocumentSettings())
}

func rawDB(t *testing.T, conn *Connection) *gorm.DB {
	t.Helper()
	db, err := conn.DB(context.Background())
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, conn *Connection, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, rawDB(t, conn).Table(table).Count(&n).Error)
	return n
}

func createSupplier(t *testing.T, repos *Repositories, name string) *partner.Supplier {
	t.Helper()
	s := partner.NewSupplier(name)
	s.Phone = "+91 98765 43210"
	s.Address = "12 Market Road"
	created, err := repos.Suppliers.Create(context.Background(), s)
	require.NoError(t, err)
	return created
}

func createPart(t *testing.T, repos *Repositories, name string, quantity, minStock int, purchase, selling int64) *catalog.Part {
	t.Helper()
	p := catalog.NewPart(name, decimal.NewFromInt(purchase), decimal.NewFromInt(selling))
	p.Quantity = quantity
	p.MinStockLevel = minStock
	created, err := repos.Parts.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

func createPartValue(name string) *catalog.Part {
	return catalog.NewPart(name, decimal.NewFromInt(10), decimal.NewFromInt(15))
}

func partQuantity(t *testing.T, repos *Repositories, id string) int {
	t.Helper()
	p, err := repos.Parts.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Quantity
}

func strPtr(s string) *string {
	return &s
}
