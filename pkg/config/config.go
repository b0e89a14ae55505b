// Package config loads stamprally settings from a YAML file, a .env file,
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
	"github.com/Sumatoshi-tech/stamprally/pkg/validate"
)

// Sentinel validation errors.
var (
	ErrInvalidBackend      = errors.New("invalid storage backend")
	ErrInvalidHistoryLimit = errors.New("history limit must not be negative")
	ErrInvalidScheme       = errors.New("scan scheme must be a non-empty word without ':'")
	ErrInvalidCooldown     = errors.New("cooldown must not be negative")
	ErrInvalidScope        = errors.New("invalid cooldown scope")
	ErrInvalidTimeout      = errors.New("server timeouts must not be negative")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be within [0, 1]")
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Config is the full stamprally configuration.
type Config struct {
	Registry  RegistryConfig  `mapstructure:"registry"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// RegistryConfig selects the checkpoint catalog. An empty file selects the
// built-in catalog.
type RegistryConfig struct {
	File string `mapstructure:"file"`
}

// StorageConfig selects where progress and history are kept.
type StorageConfig struct {
	Backend         string       `mapstructure:"backend"`
	Dir             string       `mapstructure:"dir"`
	HistoryLimit    int          `mapstructure:"history_limit"`
	CompressHistory bool         `mapstructure:"compress_history"`
	Redis           RedisConfig  `mapstructure:"redis"`
	SQLite          SQLiteConfig `mapstructure:"sqlite"`
}

// RedisConfig holds the redis backend settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	DB       int    `mapstructure:"db"`
}

// SQLiteConfig holds the sqlite backend settings. An empty path places the
// database inside the storage dir.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// ScanConfig tunes payload parsing and the rapid-fire guard.
type ScanConfig struct {
	Scheme        string        `mapstructure:"scheme"`
	CooldownScope string        `mapstructure:"cooldown_scope"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	Prometheus   bool    `mapstructure:"prometheus"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	storageErr := c.validateStorage()
	if storageErr != nil {
		return storageErr
	}

	scanErr := c.validateScan()
	if scanErr != nil {
		return scanErr
	}

	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 ||
		c.Server.IdleTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return ErrInvalidTimeout
	}

	if c.Logging.Level != "" && !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch kv.Backend(c.Storage.Backend) {
	case "", kv.BackendMemory, kv.BackendFile, kv.BackendRedis, kv.BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Storage.Backend)
	}

	if c.Storage.HistoryLimit < 0 {
		return ErrInvalidHistoryLimit
	}

	return nil
}

func (c *Config) validateScan() error {
	if strings.Contains(c.Scan.Scheme, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidScheme, c.Scan.Scheme)
	}

	if c.Scan.Cooldown < 0 {
		return ErrInvalidCooldown
	}

	_, err := validate.ParseScope(c.Scan.CooldownScope)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}

	return nil
}

// DataDir returns the storage directory, defaulting to ~/.stamprally.
func (s StorageConfig) DataDir() string {
	if s.Dir != "" {
		return s.Dir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return dataDirName
	}

	return filepath.Join(home, dataDirName)
}

// KVOptions converts the storage section into backend options.
func (s StorageConfig) KVOptions() kv.Options {
	sqlitePath := s.SQLite.Path
	if sqlitePath == "" {
		sqlitePath = filepath.Join(s.DataDir(), kv.DefaultSQLiteFile)
	}

	return kv.Options{
		Backend:    kv.Backend(s.Backend),
		Dir:        s.DataDir(),
		SQLitePath: sqlitePath,
		Redis: kv.RedisOptions{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Prefix:   s.Redis.Prefix,
		},
	}
}

// Policy converts the scan section into a validation policy.
func (s ScanConfig) Policy() validate.Policy {
	scope, err := validate.ParseScope(s.CooldownScope)
	if err != nil {
		scope = validate.ScopeOff
	}

	return validate.Policy{Cooldown: s.Cooldown, Scope: scope}
}

// Observability builds the telemetry configuration for the given mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	cfg := observability.DefaultConfig()

	cfg.ServiceVersion = version
	cfg.Mode = mode
	cfg.Environment = c.Telemetry.Environment
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.Prometheus = c.Telemetry.Prometheus && mode == observability.ModeServe
	cfg.LogLevel = ParseLogLevel(c.Logging.Level)
	cfg.LogJSON = c.Logging.JSON

	return cfg
}
