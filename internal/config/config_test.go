package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Store.MaxConns)
	assert.Equal(t, "http://localhost:5001", cfg.Fuzzy.BaseURL)
	assert.Equal(t, 30, cfg.Fuzzy.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fuzzy.MaxAttempts)
	assert.InDelta(t, 10.0, cfg.Fuzzy.RateLimit, 0.001)
	assert.Equal(t, 5, cfg.Fuzzy.RateBurst)
	assert.Equal(t, 4, cfg.Dispatch.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: floodmap.db
log:
  level: debug
  format: console
server:
  port: 9090
dispatch:
  concurrency: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "floodmap.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Dispatch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, "http://localhost:5001", cfg.Fuzzy.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FLOODMAP_STORE_DRIVER", "postgres")
	t.Setenv("FLOODMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FLOODMAP_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/floodmap"
	cfg.Fuzzy.BaseURL = "http://localhost:5001"
	cfg.Dispatch.Concurrency = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateDispatch_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Dispatch.Concurrency = 0
	err := cfg.Validate("dispatch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch.concurrency must be between 1 and 32")

	cfg.Dispatch.Concurrency = 33
	err = cfg.Validate("dispatch")
	assert.Error(t, err)

	cfg.Dispatch.Concurrency = 32
	assert.NoError(t, cfg.Validate("dispatch"))
}

func TestValidateDispatch_MissingBaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Fuzzy.BaseURL = ""

	err := cfg.Validate("dispatch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fuzzy.base_url is required")
}

func TestValidateStatus_NeedsStoreOnly(t *testing.T) {
	cfg := validDefaults()
	cfg.Fuzzy.BaseURL = ""
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("status"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
