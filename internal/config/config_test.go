package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpcli/internal/forecast"
	"dpcli/internal/ledger"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []ledger.Level{ledger.LevelProduct}, cfg.Levels())
	assert.Equal(t, forecast.Thresholds{T1: 40, T2: 60, W1: 15, W2: 10},
		cfg.Thresholds(ledger.LevelProduct))
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
paths:
  ledger_file: data/sales.csv
  catalog_file: data/catalog.csv
features:
  lags: [1, 2]
  rolling_window: 3
forecast:
  levels: [product, category]
  cutoff_week: 2024-W26
  min_train_rows: 6
  confidence:
    product:
      t1: 35
      t2: 55
      w1: 12
      w2: 8
    category:
      t1: 30
      t2: 50
      w1: 20
      w2: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "defaults survive partial files")
	assert.Equal(t, []int{1, 2}, cfg.FeatureConfig().Lags)
	assert.Equal(t, 3, cfg.FeatureConfig().RollingWindow)
	assert.Equal(t, 6, cfg.ForecastConfig(ledger.LevelProduct).MinTrainRows)

	cutoff, ok, err := cfg.CutoffWeek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ledger.Week{Year: 2024, Week: 26}, cutoff)

	assert.Equal(t, []ledger.Level{ledger.LevelProduct, ledger.LevelCategory}, cfg.Levels())
	assert.Equal(t, forecast.Thresholds{T1: 30, T2: 50, W1: 20, W2: 12},
		cfg.Thresholds(ledger.LevelCategory))
	assert.Equal(t, forecast.Thresholds{T1: 35, T2: 55, W1: 12, W2: 8},
		cfg.Thresholds(ledger.LevelCustomer),
		"levels without thresholds inherit the product entry")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("DP_SERVER_PORT", "7070")
	t.Setenv("DP_FORECAST_MIN_TRAIN_ROWS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Forecast.MinTrainRows)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"missing ledger file", func(c *Config) { c.Paths.LedgerFile = "" }},
		{"unknown level", func(c *Config) { c.Forecast.Levels = []string{"warehouse"} }},
		{"no levels", func(c *Config) { c.Forecast.Levels = nil }},
		{"bad cutoff", func(c *Config) { c.Forecast.CutoffWeek = "week-26" }},
		{"inverted thresholds", func(c *Config) {
			c.Forecast.Confidence["product"] = ThresholdsConfig{T1: 60, T2: 40, W1: 15, W2: 10}
		}},
		{"bad rolling window", func(c *Config) { c.Features.RollingWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.BaseDir = "/srv/dp"
	cfg.Paths.CatalogFile = "data/catalog.csv"

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, "/srv/dp/data/ledger.csv", paths.LedgerFile)
	assert.Equal(t, "/srv/dp/out/enriched_ledger.csv", paths.EnrichedLedgerCSV)
	assert.Equal(t, "/srv/dp/out/predictions_product.csv", paths.PredictionsCSV(ledger.LevelProduct))
	assert.Equal(t, "/srv/dp/out/features_category.csv", paths.FeatureTableCSV(ledger.LevelCategory))
	assert.Equal(t, "/srv/dp/logs/dpcli.log", paths.LogFile("dpcli.log"))
}

func TestResolvePathsKeepsAbsolute(t *testing.T) {
	cfg := Default()
	cfg.Paths.BaseDir = "/srv/dp"
	cfg.Paths.LedgerFile = "/mnt/ingest/ledger.csv"

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, "/mnt/ingest/ledger.csv", paths.LedgerFile)
	assert.Empty(t, paths.CatalogFile, "catalog stays optional")
}

func TestEnsureDirectories(t *testing.T) {
	cfg := Default()
	cfg.Paths.BaseDir = t.TempDir()

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.OutDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
