package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/partshop/backend/internal/domain/audit"
	"github.com/partshop/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mapper tells the generic repository how one entity type is stored.
// Decode and Encode are the only places where row values meet typed fields.
type Mapper[T any] struct {
	Table string
	// Columns lists the table's own columns. The shared id, timestamp and
	// version columns are implied. Filters and ordering are limited to them.
	Columns []string
	Decode  func(Row) (*T, error)
	Encode  func(*T) Row
	// Required columns must be present and non-empty on every write
	Required []string
	// SearchFields are searched when Search is called without fields
	SearchFields []string
	// Sensitive columns are left out of audit entries
	Sensitive []string
	// Normalize brings caller-set fields to the precision kept in storage,
	// so the entity written matches the one read back
	Normalize func(*T)
}

type baser interface {
	Base() *shared.BaseEntity
}

type validatable interface {
	Validate() error
}

// Repository implements create, read, update, delete, search and batch
// writes for one table. Each write and its audit entry commit together.
type Repository[T any] struct {
	session Session
	mapper  Mapper[T]
	columns map[string]bool
	log     *zap.Logger
	now     func() time.Time
}

// RepositoryOption configures a Repository
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	log *zap.Logger
	now func() time.Time
}

// WithLogger sets the logger repositories use
func WithLogger(log *zap.Logger) RepositoryOption {
	return func(o *repositoryOptions) {
		o.log = log
	}
}

// WithNow sets the clock that stamps created_at and updated_at
func WithNow(now func() time.Time) RepositoryOption {
	return func(o *repositoryOptions) {
		o.now = now
	}
}

// NewRepository creates a repository for the mapped table
func NewRepository[T any](s Session, m Mapper[T], opts ...RepositoryOption) *Repository[T] {
	o := repositoryOptions{
		log: zap.NewNop(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !ValidIdentifier(m.Table) {
		panic(fmt.Sprintf("persistence: invalid table name %q", m.Table))
	}
	return &Repository[T]{
		session: s,
		mapper:  m,
		columns: columnSet(m.Columns),
		log:     o.log,
		now:     o.now,
	}
}

// WithTx returns the same repository writing inside tx
func (r *Repository[T]) WithTx(tx *gorm.DB) *Repository[T] {
	clone := *r
	clone.session = SessionFor(tx)
	return &clone
}

// Table returns the table name
func (r *Repository[T]) Table() string {
	return r.mapper.Table
}

// Session returns the session the repository writes through
func (r *Repository[T]) Session() Session {
	return r.session
}

// Create validates entity, assigns its id and timestamps when absent, and
// inserts it. It returns the entity as read back from storage.
func (r *Repository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	row, err := r.prepareCreate(entity)
	if err != nil {
		return nil, err
	}
	return ExecuteTransaction(ctx, r.session, func(tx *gorm.DB) (*T, error) {
		if err := r.insert(ctx, tx, row); err != nil {
			return nil, err
		}
		return r.findByID(tx, row.String("id"))
	})
}

// CreateBatch inserts every entity or none. All entities are validated
// before the first insert.
func (r *Repository[T]) CreateBatch(ctx context.Context, entities []*T) ([]*T, error) {
	rows := make([]Row, 0, len(entities))
	for _, entity := range entities {
		row, err := r.prepareCreate(entity)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return []*T{}, nil
	}
	return ExecuteTransaction(ctx, r.session, func(tx *gorm.DB) ([]*T, error) {
		created := make([]*T, 0, len(rows))
		for _, row := range rows {
			if err := r.insert(ctx, tx, row); err != nil {
				return nil, err
			}
			entity, err := r.findByID(tx, row.String("id"))
			if err != nil {
				return nil, err
			}
			created = append(created, entity)
		}
		r.log.Debug("batch inserted", zap.String("table", r.mapper.Table), zap.Int("count", len(created)))
		return created, nil
	})
}

// FindByID returns the entity, or nil when no row has the id
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	db, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	return r.findByID(db, id)
}

// Update reads the row, applies mutate and writes it back with updated_at
// and version bumped. It returns nil when no row has the id.
func (r *Repository[T]) Update(ctx context.Context, id string, mutate func(*T)) (*T, error) {
	return ExecuteTransaction(ctx, r.session, func(tx *gorm.DB) (*T, error) {
		oldRow, err := r.findRow(tx, id)
		if err != nil || oldRow == nil {
			return nil, err
		}
		entity, err := r.decode(oldRow)
		if err != nil {
			return nil, err
		}
		if mutate != nil {
			mutate(entity)
		}
		if err := validate(entity); err != nil {
			return nil, err
		}
		if r.mapper.Normalize != nil {
			r.mapper.Normalize(entity)
		}

		base := baseOf(entity)
		base.ID = id
		base.CreatedAt = oldRow.Time("created_at")
		base.Version = oldRow.Int("version") + 1
		base.UpdatedAt = StorageTime(r.now())

		newRow := r.mapper.Encode(entity)
		if err := r.checkRequired(newRow); err != nil {
			return nil, err
		}
		changes := make(map[string]any, len(newRow))
		for k, v := range newRow {
			if k != "id" && k != "created_at" {
				changes[k] = v
			}
		}
		if err := tx.Table(r.mapper.Table).Where("id = ?", id).Updates(changes).Error; err != nil {
			return nil, wrapError("update", r.mapper.Table, err)
		}
		if err := r.audit(ctx, tx, audit.OperationUpdate, id, oldRow, newRow); err != nil {
			return nil, err
		}
		return r.findByID(tx, id)
	})
}

// Delete removes the row. It reports false when no row had the id.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	return ExecuteTransaction(ctx, r.session, func(tx *gorm.DB) (bool, error) {
		oldRow, err := r.findRow(tx, id)
		if err != nil || oldRow == nil {
			return false, err
		}
		res := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.mapper.Table), id)
		if res.Error != nil {
			return false, wrapError("delete", r.mapper.Table, res.Error)
		}
		if err := r.audit(ctx, tx, audit.OperationDelete, id, oldRow, nil); err != nil {
			return false, err
		}
		return res.RowsAffected > 0, nil
	})
}

// FindAll returns the rows matching opts.Where, ordered and paginated
func (r *Repository[T]) FindAll(ctx context.Context, opts shared.FindOptions) ([]*T, error) {
	db, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	q, err := r.filter(db.Table(r.mapper.Table), opts.Where)
	if err != nil {
		return nil, err
	}
	return r.fetch(r.paginate(q, opts))
}

// FindPage returns one page of rows along with the total match count
func (r *Repository[T]) FindPage(ctx context.Context, opts shared.FindOptions, page, pageSize int) (shared.Paginated[*T], error) {
	total, err := r.Count(ctx, opts.Where)
	if err != nil {
		return shared.Paginated[*T]{}, err
	}
	items, err := r.FindAll(ctx, opts.Page(page, pageSize))
	if err != nil {
		return shared.Paginated[*T]{}, err
	}
	if page < 1 {
		page = 1
	}
	return shared.NewPaginated(items, total, page, pageSize), nil
}

// Count returns how many rows match the equality filters
func (r *Repository[T]) Count(ctx context.Context, where map[string]any) (int64, error) {
	db, err := r.session.DB(ctx)
	if err != nil {
		return 0, err
	}
	q, err := r.filter(db.Table(r.mapper.Table), where)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, wrapError("count", r.mapper.Table, err)
	}
	return n, nil
}

// Exists reports whether a row has the id
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.Count(ctx, map[string]any{"id": id})
	return n > 0, err
}

// Query returns the rows selected by the given scopes. Scopes receive a
// statement already bound to the table.
func (r *Repository[T]) Query(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]*T, error) {
	db, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	return r.fetch(db.Table(r.mapper.Table).Scopes(scopes...))
}

// First returns the first row selected by the scopes, or nil
func (r *Repository[T]) First(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (*T, error) {
	scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Limit(1) })
	found, err := r.Query(ctx, scopes...)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Search matches term as a case-insensitive substring of any of fields.
// Without fields the mapper's SearchFields are used. An empty term lists
// everything matching opts.
func (r *Repository[T]) Search(ctx context.Context, term string, fields []string, opts shared.FindOptions) ([]*T, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.FindAll(ctx, opts)
	}
	if len(fields) == 0 {
		fields = r.mapper.SearchFields
	}
	if len(fields) == 0 {
		return nil, shared.NewValidationError("no fields to search", "fields")
	}

	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	conds := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		if !r.columns[f] || !ValidIdentifier(f) {
			return nil, shared.NewValidationError(fmt.Sprintf("unknown column %q", f), f)
		}
		conds = append(conds, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, f))
		args = append(args, pattern)
	}

	db, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	q, err := r.filter(db.Table(r.mapper.Table), opts.Where)
	if err != nil {
		return nil, err
	}
	q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	return r.fetch(r.paginate(q, opts))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repository[T]) prepareCreate(entity *T) (Row, error) {
	if entity == nil {
		return nil, shared.NewValidationError("nothing to create")
	}
	if err := validate(entity); err != nil {
		return nil, err
	}
	if r.mapper.Normalize != nil {
		r.mapper.Normalize(entity)
	}
	base := baseOf(entity)
	if base.ID == "" {
		base.ID = shared.NewID()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = r.now()
	}
	base.CreatedAt = StorageTime(base.CreatedAt)
	base.UpdatedAt = base.CreatedAt
	base.Version = 1

	row := r.mapper.Encode(entity)
	if err := r.checkRequired(row); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *Repository[T]) checkRequired(row Row) error {
	var missing []string
	for _, col := range r.mapper.Required {
		v, ok := row[col]
		if !ok || v == nil {
			missing = append(missing, col)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return shared.MissingFieldsError(missing...)
	}
	return nil
}

func (r *Repository[T]) insert(ctx context.Context, tx *gorm.DB, row Row) error {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.mapper.Table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	if err := tx.Exec(stmt, args...).Error; err != nil {
		return wrapError("insert", r.mapper.Table, err)
	}
	return r.audit(ctx, tx, audit.OperationInsert, row.String("id"), nil, row)
}

func (r *Repository[T]) audit(ctx context.Context, tx *gorm.DB, op audit.Operation, id string, oldRow, newRow Row) error {
	entry := &audit.Entry{
		TableName: r.mapper.Table,
		RecordID:  id,
		Operation: op,
		OldValues: auditValues(oldRow, r.mapper.Sensitive),
		NewValues: auditValues(newRow, r.mapper.Sensitive),
		CreatedAt: r.now(),
	}
	return appendAudit(ctx, tx, entry)
}

func (r *Repository[T]) filter(q *gorm.DB, where map[string]any) (*gorm.DB, error) {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !r.columns[k] || !ValidIdentifier(k) {
			return nil, shared.NewValidationError(fmt.Sprintf("unknown column %q", k), k)
		}
		if v := where[k]; v == nil {
			q = q.Where(k + " IS NULL")
		} else {
			q = q.Where(k+" = ?", v)
		}
	}
	return q, nil
}

func (r *Repository[T]) paginate(q *gorm.DB, opts shared.FindOptions) *gorm.DB {
	field := ValidateSortField(opts.OrderBy, r.columns, "created_at")
	q = q.Order(field + " " + ValidateSortOrder(opts.OrderDir))
	if field != "id" {
		q = q.Order("id")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	return q
}

func (r *Repository[T]) findRow(db *gorm.DB, id string) (Row, error) {
	var rows []map[string]any
	if err := db.Table(r.mapper.Table).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, wrapError("select", r.mapper.Table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return Row(rows[0]), nil
}

func (r *Repository[T]) findByID(db *gorm.DB, id string) (*T, error) {
	row, err := r.findRow(db, id)
	if err != nil || row == nil {
		return nil, err
	}
	return r.decode(row)
}

func (r *Repository[T]) fetch(q *gorm.DB) ([]*T, error) {
	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrapError("select", r.mapper.Table, err)
	}
	out := make([]*T, 0, len(rows))
	for _, raw := range rows {
		entity, err := r.decode(Row(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func (r *Repository[T]) decode(row Row) (*T, error) {
	entity, err := r.mapper.Decode(row)
	if err != nil {
		return nil, wrapError("decode", r.mapper.Table, err)
	}
	return entity, nil
}

func baseOf[T any](entity *T) *shared.BaseEntity {
	b, ok := any(entity).(baser)
	if !ok {
		panic(fmt.Sprintf("persistence: %T does not embed shared.BaseEntity", entity))
	}
	return b.Base()
}

func validate[T any](entity *T) error {
	if v, ok := any(entity).(validatable); ok {
		return v.Validate()
	}
	return nil
}
