package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetActor(ctx))
	assert.Empty(t, GetOperationID(ctx))
	assert.Empty(t, Fields(ctx))

	ctx = WithActor(ctx, "owner")
	ctx = WithOperationID(ctx, "")
	assert.Equal(t, "owner", GetActor(ctx))
	assert.Len(t, GetOperationID(ctx), 36)
	assert.Len(t, Fields(ctx), 2)
}

func TestLoggerInContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)
	ctx := WithOperationID(WithContext(context.Background(), base), "op-9")

	Ctx(ctx, FromContext(ctx)).Info("done")

	logs := recorded.All()
	assert.Len(t, logs, 1)
	assert.Equal(t, "op-9", logs[0].ContextMap()["operation_id"])
}
