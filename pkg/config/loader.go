package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName      = ".stamprally"
	configType      = "yaml"
	envPrefix       = "STAMPRALLY"
	envKeySeparator = "_"
	dotEnvFile      = ".env"
	systemConfigDir = "/etc/stamprally"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise the config file is searched in CWD, ~/.stamprally and
// /etc/stamprally. A .env file in CWD is loaded into the environment first;
// variables already set win. Missing files are not an error.
func LoadConfig(configPath string) (*Config, error) {
	dotEnvErr := LoadDotEnv(dotEnvFile)
	if dotEnvErr != nil {
		return nil, dotEnvErr
	}

	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, dataDirName))
		}

		viperCfg.AddConfigPath(systemConfigDir)
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	return nil
}

// ParseLogLevel maps a level name to a slog level. Unknown names map to info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("registry.file", "")

	viperCfg.SetDefault("storage.backend", DefaultStorageBackend)
	viperCfg.SetDefault("storage.dir", DefaultStorageDir)
	viperCfg.SetDefault("storage.history_limit", DefaultHistoryLimit)
	viperCfg.SetDefault("storage.compress_history", DefaultCompressHistory)
	viperCfg.SetDefault("storage.redis.addr", DefaultRedisAddr)
	viperCfg.SetDefault("storage.redis.password", "")
	viperCfg.SetDefault("storage.redis.db", DefaultRedisDB)
	viperCfg.SetDefault("storage.redis.prefix", DefaultRedisPrefix)
	viperCfg.SetDefault("storage.sqlite.path", DefaultSQLitePath)

	viperCfg.SetDefault("scan.scheme", DefaultScanScheme)
	viperCfg.SetDefault("scan.cooldown", DefaultCooldown)
	viperCfg.SetDefault("scan.cooldown_scope", DefaultCooldownScope)

	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.read_timeout", DefaultReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultWriteTimeout)
	viperCfg.SetDefault("server.idle_timeout", DefaultIdleTimeout)
	viperCfg.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", DefaultEnvironment)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.prometheus", DefaultPrometheus)
}
