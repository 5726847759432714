package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLoggerOptions(t *testing.T) {
	gl, _ := newObservedGorm(gormlogger.Info,
		WithSlowThreshold(time.Second),
		WithIgnoreRecordNotFoundError(false),
	)
	assert.Equal(t, time.Second, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)

	warn, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.logLevel)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
}

func TestGormLoggerTrace(t *testing.T) {
	t.Run("error carries context fields", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn)
		ctx := WithActor(WithOperationID(context.Background(), "op-1"), "counter")

		gl.Trace(ctx, time.Now(), sqlFn("INSERT INTO parts", 0), errors.New("CHECK constraint failed"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
		fields := logs[0].ContextMap()
		assert.Equal(t, "op-1", fields["operation_id"])
		assert.Equal(t, "counter", fields["actor"])
		assert.Equal(t, "INSERT INTO parts", fields["sql"])
	})

	t.Run("constraint rejection is debug", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn)
		gl.Trace(context.Background(), time.Now(), sqlFn("UPDATE parts", 0), sqlite3.Error{Code: sqlite3.ErrConstraint})

		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.DebugLevel, recorded.All()[0].Level)
		assert.Equal(t, "SQL rejected by constraint", recorded.All()[0].Message)
	})

	t.Run("busy database warns", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn)
		gl.Trace(context.Background(), time.Now(), sqlFn("BEGIN IMMEDIATE", 0), sqlite3.Error{Code: sqlite3.ErrBusy})

		logs := recorded.FilterMessage("database busy").All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn)
		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT", 0), gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("slow query warns", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn("SELECT * FROM invoices", 3), nil)

		logs := recorded.FilterLevelExact(zapcore.WarnLevel).All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "slow SQL")
	})

	t.Run("fast query at warn level is silent", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn, WithSlowThreshold(time.Hour))
		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 1), nil)
		assert.Zero(t, recorded.Len())
	})

	t.Run("info level logs every query at debug", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Info, WithSlowThreshold(0))
		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 1), nil)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.DebugLevel, recorded.All()[0].Level)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 1), errors.New("boom"))
		gl.Info(context.Background(), "hello %s", "world")
		assert.Zero(t, recorded.Len())
	})
}

func TestGormLoggerPrintf(t *testing.T) {
	gl, recorded := newObservedGorm(gormlogger.Info)
	gl.Info(context.Background(), "opened %s", "shop.db")
	gl.Warn(context.Background(), "pragma %s ignored", "mmap_size")
	gl.Error(context.Background(), "failed: %d", 7)

	logs := recorded.All()
	require.Len(t, logs, 3)
	assert.Equal(t, "opened shop.db", logs[0].Message)
	assert.Equal(t, "pragma mmap_size ignored", logs[1].Message)
	assert.Equal(t, "failed: 7", logs[2].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("whatever"))
}
