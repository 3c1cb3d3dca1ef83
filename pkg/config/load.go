package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use "__",
// e.g. TURNSTILE_STORE__DRIVER=redis.
const EnvPrefix = "TURNSTILE_"

// File is the application configuration loaded by the CLI.
type File struct {
	Server    ServerConfig              `koanf:"server"`
	Store     StoreConfig               `koanf:"store"`
	Logging   LoggingConfig             `koanf:"logging"`
	Telemetry TelemetryConfig           `koanf:"telemetry"`
	Sentry    SentryConfig              `koanf:"sentry"`
	Plugins   map[string]map[string]any `koanf:"plugins"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

type StoreConfig struct {
	Driver string        `koanf:"driver"` // memory, redis, sqlite, postgres
	DSN    string        `koanf:"dsn"`
	Prefix string        `koanf:"prefix"`
	TTL    time.Duration `koanf:"ttl"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
}

type SentryConfig struct {
	DSN         string `koanf:"dsn"`
	Environment string `koanf:"environment"`
}

// Defaults returns the configuration used when no file or env override is present.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.read_timeout":     "10s",
		"server.shutdown_timeout": "5s",
		"server.max_body_bytes":   1 << 20,
		"store.driver":            "memory",
		"store.prefix":            "turnstile:",
		"logging.level":           "info",
	}
}

// Load reads configuration from a YAML file (optional), a .env file (optional)
// and TURNSTILE_* environment variables, in increasing precedence.
func Load(path string) (*File, error) {
	// .env is a development convenience; absence is not an error
	_ = godotenv.Load()

	k := koanf.New(".")
	for key, v := range Defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	var cfg File
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// PluginConfig returns the option map for a named plugin (never nil).
func (f *File) PluginConfig(name string) map[string]any {
	if f == nil || f.Plugins[name] == nil {
		return map[string]any{}
	}
	return f.Plugins[name]
}
