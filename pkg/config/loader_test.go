package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".stamprally.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Empty(t, cfg.Registry.File)
	assert.Equal(t, config.DefaultStorageBackend, cfg.Storage.Backend)
	assert.Equal(t, config.DefaultHistoryLimit, cfg.Storage.HistoryLimit)
	assert.Equal(t, config.DefaultCompressHistory, cfg.Storage.CompressHistory)
	assert.Equal(t, config.DefaultRedisAddr, cfg.Storage.Redis.Addr)
	assert.Equal(t, config.DefaultRedisPrefix, cfg.Storage.Redis.Prefix)
	assert.Equal(t, config.DefaultScanScheme, cfg.Scan.Scheme)
	assert.Equal(t, config.DefaultCooldown, cfg.Scan.Cooldown)
	assert.Equal(t, config.DefaultCooldownScope, cfg.Scan.CooldownScope)
	assert.Equal(t, config.DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, config.DefaultReadTimeout, cfg.Server.ReadTimeout)
	assert.Equal(t, config.DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.InDelta(t, config.DefaultSampleRatio, cfg.Telemetry.SampleRatio, 0.001)
	assert.True(t, cfg.Telemetry.Prometheus)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	content := `registry:
  file: venue.yaml
storage:
  backend: sqlite
  dir: /var/lib/stamprally
  history_limit: 20
  compress_history: false
  sqlite:
    path: /tmp/stamps.db
scan:
  scheme: stamp
  cooldown: 3s
  cooldown_scope: "off"
server:
  addr: ":9090"
  write_timeout: 15s
logging:
  level: debug
  json: true
telemetry:
  otlp_endpoint: collector:4317
  otlp_headers: "x-token=abc"
  sample_ratio: 0.25
`

	cfg, err := config.LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "venue.yaml", cfg.Registry.File)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 20, cfg.Storage.HistoryLimit)
	assert.False(t, cfg.Storage.CompressHistory)
	assert.Equal(t, "/tmp/stamps.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, "stamp", cfg.Scan.Scheme)
	assert.Equal(t, 3*time.Second, cfg.Scan.Cooldown)
	assert.Equal(t, "off", cfg.Scan.CooldownScope)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, config.DefaultIdleTimeout, cfg.Server.IdleTimeout)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 0.001)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "backend", content: "storage:\n  backend: s3\n", want: config.ErrInvalidBackend},
		{name: "history", content: "storage:\n  history_limit: -1\n", want: config.ErrInvalidHistoryLimit},
		{name: "scheme", content: "scan:\n  scheme: \"a:b\"\n", want: config.ErrInvalidScheme},
		{name: "cooldown", content: "scan:\n  cooldown: -1s\n", want: config.ErrInvalidCooldown},
		{name: "scope", content: "scan:\n  cooldown_scope: same\n", want: config.ErrInvalidScope},
		{name: "timeout", content: "server:\n  read_timeout: -5s\n", want: config.ErrInvalidTimeout},
		{name: "level", content: "logging:\n  level: loud\n", want: config.ErrInvalidLogLevel},
		{name: "ratio", content: "telemetry:\n  sample_ratio: 1.5\n", want: config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "storage: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("STAMPRALLY_STORAGE_BACKEND", "memory")
	t.Setenv("STAMPRALLY_SCAN_COOLDOWN", "250ms")

	cfg, err := config.LoadConfig(writeConfig(t, "storage:\n  backend: file\n"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.Cooldown)
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	t.Setenv("STAMPRALLY_DOTENV_KEEP", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path,
		[]byte("STAMPRALLY_DOTENV_KEEP=from-file\nSTAMPRALLY_DOTENV_NEW=loaded\n"), 0o600))

	t.Cleanup(func() { require.NoError(t, os.Unsetenv("STAMPRALLY_DOTENV_NEW")) })

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, "from-env", os.Getenv("STAMPRALLY_DOTENV_KEEP"))
	assert.Equal(t, "loaded", os.Getenv("STAMPRALLY_DOTENV_NEW"))
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, config.ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, config.ParseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, config.ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, config.ParseLogLevel("whatever"))
}
