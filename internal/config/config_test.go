package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEQUENCE_BACKEND", "")
	t.Setenv("LOCK_BACKEND", "")

	cfg := Load()

	assert.Equal(t, "backoffice", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, 200*time.Millisecond, cfg.DBSlowQuery)
	assert.Equal(t, BackendDB, cfg.SequenceBackend)
	assert.Equal(t, BackendLocal, cfg.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "log", cfg.Notify.Provider)
	assert.Equal(t, "grpc", cfg.Telemetry.OtelProtocol)
	assert.InDelta(t, 0.1, cfg.Telemetry.SamplingRatio, 1e-9)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_TYPE", " SQLite ")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("SEQUENCE_BACKEND", "Redis")
	t.Setenv("LOCK_BACKEND", "zookeeper")
	t.Setenv("NOTIFY_PROVIDER", "SES")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, BackendRedis, cfg.SequenceBackend)
	assert.Equal(t, BackendLocal, cfg.LockBackend, "unknown backends fall back")
	assert.Equal(t, "ses", cfg.Notify.Provider)
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
}

func TestStaticPolicyFillsDefaults(t *testing.T) {
	holder := NewStaticPolicyHolder(PolicyConfig{CASMaxAttempts: 20})

	got := holder.Get()
	assert.Equal(t, 20, got.CASMaxAttempts)
	assert.Equal(t, 30, got.DefaultPaymentTermDays)
	assert.Equal(t, 3, got.CodeMaxAttempts)
}

func TestNilPolicyHolderUsesDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultPolicyConfig(), holder.Get())
}

func TestPolicyFileIsRead(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "policy:\n  defaultPaymentTermDays: 45\n  codeMaxAttempts: 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), []byte(content), 0o600))

	holder, err := NewPolicyHolder(zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 45, got.DefaultPaymentTermDays)
	assert.Equal(t, 5, got.CodeMaxAttempts)
	assert.Equal(t, 5, got.CASMaxAttempts)
}

func TestInvalidPolicyFileRejected(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), []byte("policy:\n  casMaxAttempts: -1\n"), 0o600))

	_, err := NewPolicyHolder(zap.NewNop())
	assert.ErrorContains(t, err, "casMaxAttempts")
}
