package persistence

import (
	"context"

	"gorm.io/gorm"
)

// Session hands out database handles. A Connection is the root session; a
// session bound to an open transaction makes every repository built on it
// write inside that transaction.
type Session interface {
	DB(ctx context.Context) (*gorm.DB, error)
	// Transaction runs fn in one transaction. On a session that is already
	// inside a transaction it runs in a savepoint of it.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type txSession struct {
	tx *gorm.DB
}

// SessionFor wraps a handle as a Session. When db is an open transaction,
// repositories built on the session write inside it and their own
// transactions become savepoints.
func SessionFor(db *gorm.DB) Session {
	return txSession{tx: db}
}

func (s txSession) DB(ctx context.Context) (*gorm.DB, error) {
	return s.tx.WithContext(ctx), nil
}

func (s txSession) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.tx.WithContext(ctx).Transaction(fn)
}

// ExecuteTransaction runs fn in one transaction and returns its value.
// Nothing fn wrote is kept when it returns an error.
func ExecuteTransaction[T any](ctx context.Context, s Session, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var result T
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
