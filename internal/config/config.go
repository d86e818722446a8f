package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"dpcli/internal/feature"
	"dpcli/internal/forecast"
	"dpcli/internal/ledger"
)

// Config is the complete application configuration. Values come from three
// layers, later layers winning: built-in defaults, a YAML file, then DP_*
// environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Features FeaturesConfig `yaml:"features" envconfig:"FEATURES"`
	Forecast ForecastConfig `yaml:"forecast" envconfig:"FORECAST"`
}

// ServerConfig contains HTTP server configuration for the results API.
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains the file system layout. Relative entries resolve
// against BaseDir; see Paths for the resolved form.
type PathsConfig struct {
	BaseDir     string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR"`
	OutDir      string `yaml:"out_dir" envconfig:"OUT_DIR"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	LedgerFile  string `yaml:"ledger_file" envconfig:"LEDGER_FILE"`
	CatalogFile string `yaml:"catalog_file" envconfig:"CATALOG_FILE"`
}

// FeaturesConfig mirrors feature.Config in YAML-friendly form.
type FeaturesConfig struct {
	Lags            []int `yaml:"lags" envconfig:"LAGS"`
	RollingWindow   int   `yaml:"rolling_window" envconfig:"ROLLING_WINDOW"`
	ZeroFillGaps    bool  `yaml:"zero_fill_gaps" envconfig:"ZERO_FILL_GAPS"`
	PeakWeek        int   `yaml:"peak_week" envconfig:"PEAK_WEEK"`
	HolidayFromWeek int   `yaml:"holiday_from_week" envconfig:"HOLIDAY_FROM_WEEK"`
	HolidayToWeek   int   `yaml:"holiday_to_week" envconfig:"HOLIDAY_TO_WEEK"`
}

// ForecastConfig contains the training run parameters. Confidence holds one
// threshold set per entity level; levels without an entry fall back to the
// product thresholds.
type ForecastConfig struct {
	Levels       []string                    `yaml:"levels" envconfig:"LEVELS"`
	CutoffWeek   string                      `yaml:"cutoff_week" envconfig:"CUTOFF_WEEK"`
	MinTrainRows int                         `yaml:"min_train_rows" envconfig:"MIN_TRAIN_ROWS"`
	Workers      int                         `yaml:"workers" envconfig:"WORKERS"`
	TrainBudget  time.Duration               `yaml:"train_budget" envconfig:"TRAIN_BUDGET"`
	Ridge        float64                     `yaml:"ridge" envconfig:"RIDGE"`
	Confidence   map[string]ThresholdsConfig `yaml:"confidence"`
}

// ThresholdsConfig mirrors forecast.Thresholds in YAML-friendly form.
type ThresholdsConfig struct {
	T1 float64 `yaml:"t1"`
	T2 float64 `yaml:"t2"`
	W1 int     `yaml:"w1"`
	W2 int     `yaml:"w2"`
}

// Load builds the configuration: defaults, then the YAML file at path (or
// the first well-known location when path is empty), then DP_* environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("DP", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// findConfigFile checks the well-known locations for a config file.
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks the configuration, normalizing the fields that only have
// one supported value.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/dpcli.log"
	}

	if c.Paths.LedgerFile == "" {
		return fmt.Errorf("paths.ledger_file is required")
	}

	if err := c.FeatureConfig().Validate(); err != nil {
		return fmt.Errorf("features: %w", err)
	}

	if len(c.Forecast.Levels) == 0 {
		return fmt.Errorf("forecast.levels must name at least one entity level")
	}
	for _, lvl := range c.Forecast.Levels {
		if _, err := ledger.ParseLevel(lvl); err != nil {
			return fmt.Errorf("forecast.levels: %w", err)
		}
	}
	if c.Forecast.CutoffWeek != "" {
		if _, err := ledger.ParseWeek(c.Forecast.CutoffWeek); err != nil {
			return fmt.Errorf("forecast.cutoff_week: %w", err)
		}
	}
	for lvl, th := range c.Forecast.Confidence {
		if _, err := ledger.ParseLevel(lvl); err != nil {
			return fmt.Errorf("forecast.confidence: %w", err)
		}
		if err := th.thresholds().Validate(); err != nil {
			return fmt.Errorf("forecast.confidence[%s]: %w", lvl, err)
		}
	}
	if err := c.ForecastConfig(ledger.LevelProduct).Validate(); err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	return nil
}

// FeatureConfig converts the YAML shape into the feature builder's config.
func (c *Config) FeatureConfig() feature.Config {
	return feature.Config{
		Lags:            append([]int(nil), c.Features.Lags...),
		RollingWindow:   c.Features.RollingWindow,
		ZeroFillGaps:    c.Features.ZeroFillGaps,
		PeakWeek:        c.Features.PeakWeek,
		HolidayFromWeek: c.Features.HolidayFromWeek,
		HolidayToWeek:   c.Features.HolidayToWeek,
	}
}

// ForecastConfig converts the YAML shape into the engine's config for one
// entity level, applying that level's confidence thresholds.
func (c *Config) ForecastConfig(level ledger.Level) forecast.Config {
	return forecast.Config{
		MinTrainRows: c.Forecast.MinTrainRows,
		Workers:      c.Forecast.Workers,
		TrainBudget:  c.Forecast.TrainBudget,
		Ridge:        c.Forecast.Ridge,
		Confidence:   c.Thresholds(level),
	}
}

// Thresholds returns the confidence thresholds for a level, falling back to
// the product-level entry and then to the built-in defaults.
func (c *Config) Thresholds(level ledger.Level) forecast.Thresholds {
	if th, ok := c.Forecast.Confidence[string(level)]; ok {
		return th.thresholds()
	}
	if th, ok := c.Forecast.Confidence[string(ledger.LevelProduct)]; ok {
		return th.thresholds()
	}
	return forecast.DefaultConfig().Confidence
}

// CutoffWeek parses the configured cutoff. When unset the run derives the
// cutoff from the data instead.
func (c *Config) CutoffWeek() (ledger.Week, bool, error) {
	if c.Forecast.CutoffWeek == "" {
		return ledger.Week{}, false, nil
	}
	w, err := ledger.ParseWeek(c.Forecast.CutoffWeek)
	return w, err == nil, err
}

// Levels returns the parsed entity levels for the run.
func (c *Config) Levels() []ledger.Level {
	out := make([]ledger.Level, 0, len(c.Forecast.Levels))
	for _, lvl := range c.Forecast.Levels {
		parsed, err := ledger.ParseLevel(lvl)
		if err != nil {
			continue // Validate already rejected unknown levels
		}
		out = append(out, parsed)
	}
	return out
}

func (t ThresholdsConfig) thresholds() forecast.Thresholds {
	return forecast.Thresholds{T1: t.T1, T2: t.T2, W1: t.W1, W2: t.W2}
}

// Default returns the built-in configuration.
func Default() *Config {
	feats := feature.DefaultConfig()
	fc := forecast.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/dpcli.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			OutDir:     "out",
			LogsDir:    "logs",
			LedgerFile: "data/ledger.csv",
		},
		Features: FeaturesConfig{
			Lags:            feats.Lags,
			RollingWindow:   feats.RollingWindow,
			ZeroFillGaps:    feats.ZeroFillGaps,
			PeakWeek:        feats.PeakWeek,
			HolidayFromWeek: feats.HolidayFromWeek,
			HolidayToWeek:   feats.HolidayToWeek,
		},
		Forecast: ForecastConfig{
			Levels:       []string{string(ledger.LevelProduct)},
			MinTrainRows: fc.MinTrainRows,
			Workers:      fc.Workers,
			TrainBudget:  fc.TrainBudget,
			Ridge:        fc.Ridge,
			Confidence: map[string]ThresholdsConfig{
				string(ledger.LevelProduct): {
					T1: fc.Confidence.T1,
					T2: fc.Confidence.T2,
					W1: fc.Confidence.W1,
					W2: fc.Confidence.W2,
				},
			},
		},
	}
}
