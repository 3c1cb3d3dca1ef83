package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlay(t *testing.T) {
	base := map[string]any{
		"level": "info",
		"db": map[string]any{
			"host": "localhost",
			"port": 5432,
		},
		"tags": []string{"a", "b"},
	}
	override := map[string]any{
		"db": map[string]any{
			"port": 6543,
		},
		"tags": []string{"c"},
	}

	got := config.Overlay(base, override)

	assert.Equal(t, "info", got["level"])
	assert.Equal(t, map[string]any{"host": "localhost", "port": 6543}, got["db"], "maps merge recursively")
	assert.Equal(t, []string{"c"}, got["tags"], "slices are replaced, never concatenated")

	// Inputs untouched
	assert.Equal(t, 5432, base["db"].(map[string]any)["port"])
}

func TestOverlay_MapReplacesScalar(t *testing.T) {
	got := config.Overlay(
		map[string]any{"x": "scalar"},
		map[string]any{"x": map[string]any{"y": 1}},
		map[string]any{"z": true},
	)
	assert.Equal(t, map[string]any{"y": 1}, got["x"])
	assert.Equal(t, true, got["z"])
}

func TestOverlay_OutputIsIndependent(t *testing.T) {
	src := map[string]any{"db": map[string]any{"host": "a"}}
	got := config.Overlay(src)
	got["db"].(map[string]any)["host"] = "b"
	assert.Equal(t, "a", src["db"].(map[string]any)["host"])
}

func TestDecode(t *testing.T) {
	type opts struct {
		Enabled bool          `mapstructure:"enabled"`
		Timeout time.Duration `mapstructure:"timeout"`
		Limit   int           `mapstructure:"limit"`
	}

	var o opts
	err := config.Decode(map[string]any{
		"enabled": "true",
		"timeout": "2s",
		"limit":   "10",
	}, &o)
	require.NoError(t, err)
	assert.True(t, o.Enabled)
	assert.Equal(t, 2*time.Second, o.Timeout)
	assert.Equal(t, 10, o.Limit)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turnstile.yaml")
	content := `
server:
  addr: ":9090"
store:
  driver: sqlite
  dsn: "file:test.db"
plugins:
  logging:
    requestLogging: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("TURNSTILE_STORE__DRIVER", "redis")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Store.Driver, "env overrides file")
	assert.Equal(t, "file:test.db", cfg.Store.DSN)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout, "defaults apply")
	assert.Equal(t, true, cfg.PluginConfig("logging")["requestLogging"])
	assert.Empty(t, cfg.PluginConfig("missing"))
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
}
