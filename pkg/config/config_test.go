package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/pkg/config"
	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
	"github.com/Sumatoshi-tech/stamprally/pkg/validate"
)

func TestValidate_ZeroConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	require.NoError(t, cfg.Validate())
}

func TestStorageConfig_KVOptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	storage := config.StorageConfig{
		Backend: "sqlite",
		Dir:     dir,
		Redis:   config.RedisConfig{Addr: "cache:6379", DB: 2, Prefix: "venue:"},
	}

	opts := storage.KVOptions()

	assert.Equal(t, kv.BackendSQLite, opts.Backend)
	assert.Equal(t, dir, opts.Dir)
	assert.Equal(t, filepath.Join(dir, kv.DefaultSQLiteFile), opts.SQLitePath)
	assert.Equal(t, "cache:6379", opts.Redis.Addr)
	assert.Equal(t, 2, opts.Redis.DB)
	assert.Equal(t, "venue:", opts.Redis.Prefix)
}

func TestStorageConfig_DataDirDefaultsUnderHome(t *testing.T) {
	t.Parallel()

	dir := config.StorageConfig{}.DataDir()
	assert.Equal(t, ".stamprally", filepath.Base(dir))
}

func TestScanConfig_Policy(t *testing.T) {
	t.Parallel()

	policy := config.ScanConfig{Cooldown: 2 * time.Second, CooldownScope: "off"}.Policy()

	assert.Equal(t, validate.Policy{Cooldown: 2 * time.Second, Scope: validate.ScopeOff}, policy)
	assert.Equal(t, validate.ScopeOff, config.ScanConfig{}.Policy().Scope)

	policy = config.ScanConfig{Cooldown: time.Second, CooldownScope: "any"}.Policy()
	assert.Equal(t, validate.ScopeAny, policy.Scope)
}

func TestConfig_Observability(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Logging: config.LoggingConfig{Level: "debug", JSON: true},
		Telemetry: config.TelemetryConfig{
			OTLPEndpoint: "collector:4317",
			OTLPHeaders:  "a=1,b=2",
			Environment:  "venue",
			SampleRatio:  0.5,
			Prometheus:   true,
		},
	}

	serve := cfg.Observability(observability.ModeServe, "1.2.3")

	assert.Equal(t, "stamprally", serve.ServiceName)
	assert.Equal(t, "1.2.3", serve.ServiceVersion)
	assert.Equal(t, "venue", serve.Environment)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, serve.OTLPHeaders)
	assert.True(t, serve.Prometheus)
	assert.True(t, serve.LogJSON)

	cli := cfg.Observability(observability.ModeCLI, "1.2.3")
	assert.False(t, cli.Prometheus)
}
