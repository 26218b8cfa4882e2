package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "https://api.statbotics.io/v3", cfg.Upstream.BaseURL)
	assert.Equal(t, 10_000, cfg.Upstream.TimeoutMS)
	assert.Equal(t, 10, cfg.Aggregate.Concurrency)
	assert.Equal(t, 300, cfg.Aggregate.IdentifierCap)
	assert.Equal(t, []float64{5, 25, 50, 75, 95}, cfg.Aggregate.DefaultRanks)
	assert.Equal(t, 200, cfg.Resolver.Phrase)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STATPROXY_ADDR", ":9090")
	t.Setenv("STATPROXY_LOG_LEVEL", "debug")
	t.Setenv("STATPROXY_UPSTREAM__TIMEOUT_MS", "2500")
	t.Setenv("STATPROXY_AGGREGATE__CONCURRENCY", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2500, cfg.Upstream.TimeoutMS)
	assert.Equal(t, 4, cfg.Aggregate.Concurrency)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7070"
log_format: console
upstream:
  rate_limit: 5
  rate_burst: 2
aggregate:
  identifier_cap: 100
`), 0o600))
	t.Setenv("STATPROXY_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.InDelta(t, 5.0, cfg.Upstream.RateLimit, 1e-9)
	assert.Equal(t, 2, cfg.Upstream.RateBurst)
	assert.Equal(t, 100, cfg.Aggregate.IdentifierCap)

	// Untouched keys keep their defaults.
	assert.Equal(t, "https://api.statbotics.io/v3", cfg.Upstream.BaseURL)
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o600))
	t.Setenv("STATPROXY_CONFIG", path)
	t.Setenv("STATPROXY_ADDR", ":9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("STATPROXY_LOG_LEVEL", "verbose")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("STATPROXY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestAliases(t *testing.T) {
	builtin, err := Config{}.Aliases()
	require.NoError(t, err)
	assert.Contains(t, builtin.Expand("glp"), "glacier peak")

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("abc: [alphabet city]\n"), 0o600))

	custom, err := Config{AliasFile: path}.Aliases()
	require.NoError(t, err)
	assert.Contains(t, custom.Expand("abc"), "alphabet city")

	_, err = Config{AliasFile: filepath.Join(t.TempDir(), "absent.yaml")}.Aliases()
	assert.Error(t, err)
}
