package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/partshop/backend/internal/domain/audit"
	"github.com/partshop/backend/internal/domain/partner"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/partshop/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRepository_CreateAssignsIdentity(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()

	created, err := repos.Suppliers.Create(ctx, partner.NewSupplier("  Acme Spares "))
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Acme Spares", created.Name)
	assert.Equal(t, 1, created.Version)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.True(t, created.IsActive)

	found, err := repos.Suppliers.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)
}

func TestRepository_CreateKeepsGivenID(t *testing.T) {
	_, repos := newTestRepositories(t)

	s := partner.NewSupplier("Fixed")
	s.ID = "supplier-1"
	created, err := repos.Suppliers.Create(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "supplier-1", created.ID)

	_, err = repos.Suppliers.Create(context.Background(), s)
	assert.True(t, errors.Is(err, shared.ErrConstraint), "duplicate id: %v", err)
}

func TestRepository_CreateRejectsInvalidEntity(t *testing.T) {
	conn, repos := newTestRepositories(t)

	s := partner.NewSupplier("Bad mail")
	s.Email = "not-an-email"
	_, err := repos.Suppliers.Create(context.Background(), s)

	assert.True(t, shared.IsValidation(err))
	assert.Zero(t, countRows(t, conn, "suppliers"))
	assert.Zero(t, countRows(t, conn, "audit_log"))
}

func TestRepository_FindByIDMissing(t *testing.T) {
	_, repos := newTestRepositories(t)

	found, err := repos.Suppliers.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_Update(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()
	created := createSupplier(t, repos, "Acme")

	updated, err := repos.Suppliers.Update(ctx, created.ID, func(s *partner.Supplier) {
		s.Name = "Acme Motors"
		s.ID = "ignored"
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Acme Motors", updated.Name)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	assert.Equal(t, created.Phone, updated.Phone)
}

func TestRepository_UpdateMissingReturnsNil(t *testing.T) {
	_, repos := newTestRepositories(t)

	updated, err := repos.Suppliers.Update(context.Background(), "nope", func(s *partner.Supplier) {
		s.Name = "x"
	})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestRepository_UpdateValidationLeavesRowAlone(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()
	created := createSupplier(t, repos, "Acme")

	_, err := repos.Suppliers.Update(ctx, created.ID, func(s *partner.Supplier) {
		s.Name = "  "
	})
	require.True(t, shared.IsValidation(err))

	found, err := repos.Suppliers.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", found.Name)
	assert.Equal(t, 1, found.Version)
}

func TestRepository_Delete(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()
	created := createSupplier(t, repos, "Acme")

	deleted, err := repos.Suppliers.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repos.Suppliers.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	exists, err := repos.Suppliers.Exists(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_FindAllFiltersAndOrders(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()
	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		createSupplier(t, repos, name)
	}
	inactive := createSupplier(t, repos, "Delta")
	_, err := repos.Suppliers.Deactivate(ctx, inactive.ID)
	require.NoError(t, err)

	all, err := repos.Suppliers.FindAll(ctx, shared.FindOptions{OrderBy: "name", OrderDir: "asc"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Alpha", all[0].Name)
	assert.Equal(t, "Delta", all[3].Name)

	active, err := repos.Suppliers.FindAll(ctx, shared.FindOptions{
		Where:   map[string]any{"is_active": 1},
		OrderBy: "name",
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Charlie", active[0].Name, "order direction defaults to desc")

	_, err = repos.Suppliers.FindAll(ctx, shared.FindOptions{Where: map[string]any{"name; DROP TABLE suppliers": "x"}})
	assert.True(t, shared.IsValidation(err))

	n, err := repos.Suppliers.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestRepository_UnknownSortFieldFallsBack(t *testing.T) {
	_, repos := newTestRepositories(t)
	createSupplier(t, repos, "Alpha")

	found, err := repos.Suppliers.FindAll(context.Background(), shared.FindOptions{OrderBy: "name DESC; --"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestRepository_FindPage(t *testing.T) {
	_, repos := newTestRepositories(t)
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		createSupplier(t, repos, name)
	}

	page, err := repos.Suppliers.FindPage(context.Background(), shared.FindOptions{OrderBy: "name", OrderDir: "asc"}, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "C", page.Items[0].Name)
	assert.Equal(t, "D", page.Items[1].Name)
}

func TestRepository_Search(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := context.Background()
	createSupplier(t, repos, "Bosch Distributors")
	createSupplier(t, repos, "Minda 100% Genuine")
	createSupplier(t, repos, "Lumax")

	found, err := repos.Suppliers.Search(ctx, "BOSCH", nil, shared.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bosch Distributors", found[0].Name)

	found, err = repos.Suppliers.Search(ctx, "100%", []string{"name"}, shared.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Minda 100% Genuine", found[0].Name)

	found, err = repos.Suppliers.Search(ctx, "%", nil, shared.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, found, 1, "wildcards are matched literally")

	found, err = repos.Suppliers.Search(ctx, "  ", nil, shared.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, found, 3)

	_, err = repos.Suppliers.Search(ctx, "x", []string{"password"}, shared.FindOptions{})
	assert.True(t, shared.IsValidation(err))
}

func TestRepository_CreateBatchIsAllOrNothing(t *testing.T) {
	conn, repos := newTestRepositories(t)
	ctx := context.Background()

	created, err := repos.Suppliers.CreateBatch(ctx, []*partner.Supplier{
		partner.NewSupplier("One"),
		partner.NewSupplier("Two"),
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	dup := partner.NewSupplier("Three")
	dup.ID = created[0].ID
	_, err = repos.Suppliers.CreateBatch(ctx, []*partner.Supplier{partner.NewSupplier("Four"), dup})
	require.True(t, errors.Is(err, shared.ErrConstraint))

	assert.Equal(t, int64(2), countRows(t, conn, "suppliers"))

	_, err = repos.Suppliers.CreateBatch(ctx, []*partner.Supplier{partner.NewSupplier("Five"), partner.NewSupplier("")})
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, int64(2), countRows(t, conn, "suppliers"))
}

func TestRepository_WithTxRollsBack(t *testing.T) {
	conn, repos := newTestRepositories(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := conn.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := repos.Suppliers.WithTx(tx).Create(ctx, partner.NewSupplier("Inside")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, countRows(t, conn, "suppliers"))
	assert.Zero(t, countRows(t, conn, "audit_log"))
}

func TestRepository_WritesAreAudited(t *testing.T) {
	_, repos := newTestRepositories(t)
	ctx := logger.WithActor(context.Background(), "counter-1")

	created, err := repos.Suppliers.Create(ctx, partner.NewSupplier("Acme"))
	require.NoError(t, err)
	_, err = repos.Suppliers.Update(ctx, created.ID, func(s *partner.Supplier) { s.Name = "Acme Motors" })
	require.NoError(t, err)
	_, err = repos.Suppliers.Delete(context.Background(), created.ID)
	require.NoError(t, err)

	entries, err := repos.AuditLog.ListForRecord(ctx, "suppliers", created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, audit.OperationInsert, entries[0].Operation)
	assert.Nil(t, entries[0].OldValues)
	assert.Equal(t, "Acme", entries[0].NewValues["name"])
	assert.Equal(t, "counter-1", entries[0].Actor)

	assert.Equal(t, audit.OperationUpdate, entries[1].Operation)
	assert.Contains(t, entries[1].ChangedFields(), "name")
	assert.Equal(t, "Acme Motors", entries[1].NewValues["name"])

	assert.Equal(t, audit.OperationDelete, entries[2].Operation)
	assert.Nil(t, entries[2].NewValues)
	assert.Equal(t, audit.SystemActor, entries[2].Actor)

	recent, err := repos.AuditLog.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, audit.OperationDelete, recent[0].Operation)
}

func TestRepository_FixedClockStampsRows(t *testing.T) {
	conn := newTestConnection(t)
	at := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC)
	suppliers := NewSupplierRepository(conn, WithNow(func() time.Time { return at }))

	created, err := suppliers.Create(context.Background(), partner.NewSupplier("Clocked"))
	require.NoError(t, err)
	assert.Equal(t, StorageTime(at), created.CreatedAt)

	var raw string
	require.NoError(t, rawDB(t, conn).Raw("SELECT created_at FROM suppliers WHERE id = ?", created.ID).Scan(&raw).Error)
	assert.Equal(t, "2026-03-01 09:30:00.123", raw)
}

func TestNewRepository_PanicsOnBadTable(t *testing.T) {
	assert.Panics(t, func() {
		NewRepository(nil, Mapper[partner.Supplier]{Table: "suppliers; DROP"})
	})
}
