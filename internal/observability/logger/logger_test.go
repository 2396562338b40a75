package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/backoffice/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsRequestAndActor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithActor(ctx, "supplier", "42")

	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "supplier", fields["actor_type"])
	assert.Equal(t, "42", fields["actor_id"])
}

func TestWithContextWithoutCorrelationKeepsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestDescribeStatement(t *testing.T) {
	verb, table := describeStatement(`UPDATE "commitment_lines" SET "consumed"=$1 WHERE id = $2 AND version = $3`)
	assert.Equal(t, "UPDATE", verb)
	assert.Equal(t, "commitment_lines", table)

	verb, table = describeStatement("INSERT INTO `invoices` (`id`) VALUES (?)")
	assert.Equal(t, "INSERT", verb)
	assert.Equal(t, "invoices", table)

	verb, table = describeStatement("WITH x AS (select 1) SELECT * FROM x")
	assert.Equal(t, "SELECT", verb)
	assert.Equal(t, "x", table)

	verb, table = describeStatement("")
	assert.Equal(t, "UNKNOWN", verb)
	assert.Empty(t, table)
}

func TestGormTraceDemotesExpectedErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gl := NewGormLogger(zap.New(core), GormConfig{Level: gormlogger.Info})
	sql := func() (string, int64) { return "INSERT INTO service_orders (code) VALUES (?)", 0 }

	gl.Trace(context.Background(), time.Now(), sql, fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey))
	gl.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
	assert.Equal(t, "service_orders", logs.All()[1].ContextMap()["table"])
}

func TestGormTraceFlagsSlowQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gl := NewGormLogger(zap.New(core), GormConfig{SlowThreshold: time.Millisecond})

	gl.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT * FROM invoices", 1
	}, nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", 200, ""))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/orders", 400, "validation_error"))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/api/orders", 422, "business_rule_violation"))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/api/orders", 500, "internal_error"))
}

func TestEncoding(t *testing.T) {
	assert.Equal(t, "console", encoding(" Console "))
	assert.Equal(t, "json", encoding("xml"))
}
