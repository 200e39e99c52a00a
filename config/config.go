// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config is the typed configuration for statekit processes.
type Config struct {
	Storage StorageConfig
	Relay   RelayConfig
	Log     LogConfig
}

type StorageConfig struct {
	// Dir is where the file backend keeps its entries.
	Dir string

	// Backend names the preferred store: file | cookie | memory. The
	// storage manager still falls back down the durability order when
	// the preferred backend fails its self-test.
	Backend string
}

type RelayConfig struct {
	// Addr is the relay server's listen address, or the relay endpoint
	// URL on the client side.
	Addr string
}

type LogConfig struct {
	Level string
}

// Load reads .env when present and populates a Config from environment
// variables.
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist outside local development.
	_ = godotenv.Load(files...)

	return &Config{
		Storage: StorageConfig{
			Dir:     env("STATEKIT_STORAGE_DIR", defaultStorageDir()),
			Backend: env("STATEKIT_STORAGE_BACKEND", "file"),
		},
		Relay: RelayConfig{
			Addr: env("STATEKIT_RELAY_ADDR", ":8100"),
		},
		Log: LogConfig{
			Level: env("STATEKIT_LOG_LEVEL", "info"),
		},
	}
}

// Merge overlays override onto base field-wise; non-zero override fields win.
func Merge(base, override Config) Config {
	merged := base
	if override.Storage.Dir != "" {
		merged.Storage.Dir = override.Storage.Dir
	}
	if override.Storage.Backend != "" {
		merged.Storage.Backend = override.Storage.Backend
	}
	if override.Relay.Addr != "" {
		merged.Relay.Addr = override.Relay.Addr
	}
	if override.Log.Level != "" {
		merged.Log.Level = override.Log.Level
	}
	return merged
}

// SlogLevel maps the configured log level onto slog's scale. Unknown values
// default to Info.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
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

func defaultStorageDir() string {
	cache, err := os.UserCacheDir()
	if err != nil {
		return ".statekit"
	}
	return cache + string(os.PathSeparator) + "statekit"
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
