package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/partshop/backend/internal/infrastructure/config"
	"github.com/partshop/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connection owns the single SQLite handle. It opens lazily on first use;
// concurrent first callers share one open.
type Connection struct {
	cfg        config.DatabaseConfig
	log        *zap.Logger
	dialector  gorm.Dialector
	now        func() time.Time
	migrations []Migration

	mu    sync.RWMutex
	db    *gorm.DB
	group singleflight.Group
}

// ConnectionOption configures a Connection
type ConnectionOption func(*Connection)

// WithDialector replaces the sqlite dialector built from the config
func WithDialector(d gorm.Dialector) ConnectionOption {
	return func(c *Connection) {
		c.dialector = d
	}
}

// WithClock sets the clock used for gorm timestamps and repositories
func WithClock(now func() time.Time) ConnectionOption {
	return func(c *Connection) {
		c.now = now
	}
}

// WithMigrations replaces the versioned migrations run by InitializeSchema
func WithMigrations(m []Migration) ConnectionOption {
	return func(c *Connection) {
		c.migrations = m
	}
}

// NewConnection creates a connection without opening it
func NewConnection(cfg config.DatabaseConfig, log *zap.Logger, opts ...ConnectionOption) *Connection {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Connection{
		cfg:        cfg,
		log:        log.Named("persistence"),
		now:        func() time.Time { return time.Now().UTC() },
		migrations: DefaultMigrations(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB returns the live handle, opening it on first call
func (c *Connection) DB(ctx context.Context) (*gorm.DB, error) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db != nil {
		return db.WithContext(ctx), nil
	}

	// The handle outlives whichever caller happens to open it
	openCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do("open", func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.db != nil {
			return c.db, nil
		}
		db, err := c.open(openCtx)
		if err != nil {
			return nil, err
		}
		c.db = db
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("joined in-flight database open")
	}
	return v.(*gorm.DB).WithContext(ctx), nil
}

func (c *Connection) open(ctx context.Context) (*gorm.DB, error) {
	dialector := c.dialector
	if dialector == nil {
		dialector = sqlite.Open(c.cfg.DSN())
	}

	gormLog := logger.NewGormLogger(c.log, logger.MapGormLogLevel(c.cfg.LogLevel),
		logger.WithSlowThreshold(c.cfg.SlowQueryThreshold),
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		NowFunc:                c.now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", c.cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// One connection serializes every transaction. It is never recycled,
	// which also keeps an in-memory database alive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.applyPragmas(ctx, db)
	c.log.Info("database opened", zap.String("path", c.cfg.Path))
	return db, nil
}

// Pragma is one tuning statement applied after open
type Pragma struct {
	Name  string
	Value string
}

// Pragmas returns the tuning statements for the configured database
func (c *Connection) Pragmas() []Pragma {
	return []Pragma{
		{"foreign_keys", "ON"},
		{"journal_mode", c.cfg.JournalMode},
		{"synchronous", c.cfg.Synchronous},
		{"cache_size", fmt.Sprintf("-%d", c.cfg.CacheSizeKB)},
		{"mmap_size", fmt.Sprintf("%d", c.cfg.MmapSizeBytes)},
		{"temp_store", c.cfg.TempStore},
	}
}

// applyPragmas is best-effort: a failing pragma is logged and skipped
func (c *Connection) applyPragmas(ctx context.Context, db *gorm.DB) {
	for _, p := range c.Pragmas() {
		if p.Value == "" || p.Value == "-0" {
			continue
		}
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.Name, p.Value)
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			c.log.Warn("pragma not applied",
				zap.String("pragma", p.Name),
				zap.String("value", p.Value),
				zap.Error(err),
			)
		}
	}
}

// Transaction runs fn in one transaction on the live handle
func (c *Connection) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(fn)
}

// InitializeSchema creates tables, runs pending migrations, then creates
// indexes and triggers. It is safe to call on every start.
func (c *Connection) InitializeSchema(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	return NewSchema(c.log, c.migrations...).Initialize(ctx, db)
}

// Migrator returns the versioned migration runner for this connection
func (c *Connection) Migrator() *Migrator {
	return NewMigrator(c, c.log, c.migrations...)
}

// Ping checks that the database answers
func (c *Connection) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Path returns the configured database path
func (c *Connection) Path() string {
	return c.cfg.Path
}

// Now returns the connection clock's current time
func (c *Connection) Now() time.Time {
	return c.now()
}

// IsOpen reports whether the handle has been opened
func (c *Connection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db != nil
}

// Close closes the handle and resets all cached state, so the next DB call
// opens a fresh one.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.group.Forget("open")
	if c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
