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

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "scrapingbee", cfg.Fetch.Backend)
	assert.Equal(t, 4000, cfg.Fetch.MinDelayMs)
	assert.Equal(t, 7000, cfg.Fetch.MaxDelayMs)
	assert.Equal(t, 3000, cfg.Fetch.FailureDelayMs)
	assert.False(t, cfg.Fetch.FallbackHTTP)
	assert.Equal(t, "anthropic", cfg.Classifier.Provider)
	assert.Equal(t, "https://www.cyberbackgroundchecks.com", cfg.People.BaseURL)
	assert.Equal(t, 25, cfg.People.MaxPages)
	assert.Equal(t, 10, cfg.Enrich.RowConcurrency)
	assert.Equal(t, 10, cfg.Enrich.RelativeConcurrency)
	assert.Equal(t, 5, cfg.Enrich.MaxRelatives)
	assert.Equal(t, 20, cfg.Enrich.RelativeDelayMs)
	assert.Equal(t, []string{"fund", "funds", "family"}, cfg.Enrich.FundPatterns)
	assert.Equal(t, "https://bizfileonline.sos.ca.gov", cfg.BizFile.BaseURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
  format: console
server:
  port: 9090
enrich:
  row_concurrency: 4
  ignore_llc_patterns:
    - trust
    - holdings
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Enrich.RowConcurrency)
	assert.Equal(t, []string{"trust", "holdings"}, cfg.Enrich.IgnoreLLCPatterns)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Enrich.MaxRelatives)
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

	t.Setenv("SKIPTRACE_STORE_DRIVER", "postgres")
	t.Setenv("SKIPTRACE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SKIPTRACE_FETCH_BACKEND", "zyte")
	t.Setenv("SKIPTRACE_PEOPLE_MAX_PAGES", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "zyte", cfg.Fetch.Backend)
	assert.Equal(t, 3, cfg.People.MaxPages)
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

// validDefaults returns a Config that passes validation in every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "skiptrace.db"
	cfg.Fetch.Backend = "scrapingbee"
	cfg.Fetch.MinDelayMs = 4000
	cfg.Fetch.MaxDelayMs = 7000
	cfg.ScrapingBee.Key = "sb-key"
	cfg.Classifier.Provider = "anthropic"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Enrich.RowConcurrency = 10
	cfg.Enrich.RelativeConcurrency = 10
	cfg.Enrich.MaxRelatives = 5
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateServe_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidate_MissingKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.ScrapingBee.Key = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrapingbee.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidate_BackendSelection(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.Backend = "zyte"
	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zyte.key is required")

	cfg.Fetch.Backend = "browser"
	assert.NoError(t, cfg.Validate("run"))

	cfg.Fetch.Backend = "carrier-pigeon"
	err = cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.backend")
}

func TestValidate_OpenAIProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Classifier.Provider = "openai"
	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.key is required")

	cfg.OpenAI.Key = "sk-openai"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mongo"

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Enrich.RowConcurrency = 0
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "row_concurrency must be between 1 and 50")

	cfg.Enrich.RowConcurrency = 51
	assert.Error(t, cfg.Validate("run"))

	cfg.Enrich.RowConcurrency = 50
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateDelayOrder(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.MaxDelayMs = 100

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_delay_ms")
}
