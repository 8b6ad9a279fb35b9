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
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 24, cfg.Scheduler.BatchSize)
	assert.Equal(t, 4, cfg.Scheduler.MaxRetryAttempts)
	assert.InDelta(t, 1.8, cfg.Scheduler.RetryTimeoutMul, 0.001)
	assert.Equal(t, 150_000, cfg.Dedup.HighWatermark)
	assert.Equal(t, 100_000, cfg.Dedup.LowWatermark)
	assert.Equal(t, 25, cfg.Scorer.WildlifeThreshold)
	assert.Equal(t, 30, cfg.Scorer.HTThreshold)
	assert.Equal(t, 1452, cfg.Keywords.ExpectedTotal)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
scheduler:
  batch_size: 40
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 40, cfg.Scheduler.BatchSize)
	// Defaults still apply for unset values
	assert.Equal(t, 150_000, cfg.Dedup.HighWatermark)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SENTINEL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SENTINEL_SCHEDULER_BATCH_SIZE", "12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Scheduler.BatchSize)
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

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Scheduler.BatchSize = 24
	cfg.Dedup.HighWatermark = 150_000
	cfg.Dedup.LowWatermark = 100_000
	cfg.Keywords.MinAcceptedFrac = 0.9
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.EBay.AppID = "app-id"
	cfg.EBay.CertID = "cert-id"

	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "ebay.app_id and ebay.cert_id are required")
}

func TestValidateScore_NoExternalDeps(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("score"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateBatchSizeBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "x"
	cfg.EBay.AppID = "a"
	cfg.EBay.CertID = "c"

	cfg.Scheduler.BatchSize = 0
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size must be >= 1")

	cfg.Scheduler.BatchSize = 24
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateDedupWatermarks(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "x"
	cfg.EBay.AppID = "a"
	cfg.EBay.CertID = "c"

	cfg.Dedup.LowWatermark = 200_000
	cfg.Dedup.HighWatermark = 150_000
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "low_watermark must be less than")
}
