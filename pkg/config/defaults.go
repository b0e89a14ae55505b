package config

import "time"

// Storage defaults.
const (
	DefaultStorageBackend  = "file"
	DefaultStorageDir      = ""
	DefaultHistoryLimit    = 100
	DefaultCompressHistory = true
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisDB         = 0
	DefaultRedisPrefix     = "stamprally:"
	DefaultSQLitePath      = ""
)

// Scan defaults.
const (
	DefaultScanScheme    = "checkpoint"
	DefaultCooldown = time.Second
	// DefaultCooldownScope leaves distinct checkpoints unrestricted; "any"
	// applies DefaultCooldown across all checkpoints.
	DefaultCooldownScope = "off"
)

// Server defaults.
const (
	DefaultServerAddr      = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Telemetry defaults.
const (
	DefaultEnvironment = "development"
	DefaultSampleRatio = 1.0
	DefaultPrometheus  = true
)

// dataDirName is created under the home directory when no storage dir is set.
const dataDirName = ".stamprally"
