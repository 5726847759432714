package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/partshop/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// wrapError turns an engine failure into a *shared.StorageError. Validation
// and storage errors pass through unchanged.
func wrapError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var verr *shared.ValidationError
	var serr *shared.StorageError
	if errors.As(err, &verr) || errors.As(err, &serr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &shared.StorageError{
		Op:         op,
		Table:      table,
		Err:        err,
		Constraint: isConstraintError(err),
	}
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// IsBusy reports whether err is SQLite refusing a lock held elsewhere
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
