package persistence

import (
	"context"
	"time"

	"github.com/partshop/backend/internal/domain/audit"
	"github.com/partshop/backend/internal/domain/shared"
	"github.com/partshop/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

const auditTable = "audit_log"

// AuditLogRepository reads and appends audit entries. Entries are never
// updated or deleted.
type AuditLogRepository struct {
	session Session
	now     func() time.Time
}

// NewAuditLogRepository creates an audit log repository
func NewAuditLogRepository(s Session, now func() time.Time) *AuditLogRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AuditLogRepository{session: s, now: now}
}

// Append records an entry. Missing id, actor and time are filled in.
func (r *AuditLogRepository) Append(ctx context.Context, e *audit.Entry) error {
	if e.TableName == "" || e.RecordID == "" || e.Operation == "" {
		return shared.MissingFieldsError("table_name", "record_id", "operation")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	db, err := r.session.DB(ctx)
	if err != nil {
		return err
	}
	return appendAudit(ctx, db, e)
}

// ListForRecord returns a record's history, oldest first
func (r *AuditLogRepository) ListForRecord(ctx context.Context, table, recordID string) ([]*audit.Entry, error) {
	db, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	return r.list(db.Table(auditTable).
		Where("table_name = ? AND record_id = ?", table, recordID).
		Order("created_at ASC").Order("rowid ASC"))
}

// ListRecent returns the latest entries, newest first
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*audit.Entry, error) {
	db, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Table(auditTable).Order("created_at DESC").Order("rowid DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.list(q)
}

func (r *AuditLogRepository) list(q *gorm.DB) ([]*audit.Entry, error) {
	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrapError("select", auditTable, err)
	}
	entries := make([]*audit.Entry, 0, len(rows))
	for _, raw := range rows {
		e, err := decodeAuditEntry(Row(raw))
		if err != nil {
			return nil, wrapError("decode", auditTable, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func decodeAuditEntry(row Row) (*audit.Entry, error) {
	e := &audit.Entry{
		ID:        row.String("id"),
		TableName: row.String("table_name"),
		RecordID:  row.String("record_id"),
		Operation: audit.Operation(row.String("operation")),
		Actor:     row.String("actor"),
		CreatedAt: row.Time("created_at"),
	}
	if err := row.JSON("old_values", &e.OldValues); err != nil {
		return nil, err
	}
	if err := row.JSON("new_values", &e.NewValues); err != nil {
		return nil, err
	}
	return e, nil
}

// appendAudit writes e on db, which is the transaction of the audited write
func appendAudit(ctx context.Context, db *gorm.DB, e *audit.Entry) error {
	if e.ID == "" {
		e.ID = shared.NewID()
	}
	if e.Actor == "" {
		e.Actor = logger.GetActor(ctx)
	}
	if e.Actor == "" {
		e.Actor = audit.SystemActor
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var oldValues, newValues any
	if e.OldValues != nil {
		oldValues = JSONValue(e.OldValues)
	}
	if e.NewValues != nil {
		newValues = JSONValue(e.NewValues)
	}
	err := db.Exec(`INSERT INTO audit_log
		(id, table_name, record_id, operation, old_values, new_values, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TableName, e.RecordID, string(e.Operation), oldValues, newValues, e.Actor, FormatTime(e.CreatedAt),
	).Error
	return wrapError("insert", auditTable, err)
}
