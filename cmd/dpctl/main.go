// dpctl runs the full demand forecasting pipeline: load, enrich, build
// features, train and predict, export artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"dpcli/internal/config"
	"dpcli/internal/infrastructure"
	"dpcli/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "config file (defaults to config.yaml if present)")
	ledgerFile := flag.String("ledger", "", "transaction ledger CSV (overrides config)")
	catalogFile := flag.String("catalog", "", "price catalog CSV (overrides config)")
	outDir := flag.String("out", "", "output directory for artifacts (overrides config)")
	levels := flag.String("levels", "", "comma-separated entity levels to forecast (overrides config)")
	cutoff := flag.String("cutoff", "", "train/test cutoff week, e.g. 2024-W26 (overrides config)")
	traceExporter := flag.String("trace", "none", "trace exporter: stdout or none")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *ledgerFile != "" {
		cfg.Paths.LedgerFile = *ledgerFile
	}
	if *catalogFile != "" {
		cfg.Paths.CatalogFile = *catalogFile
	}
	if *outDir != "" {
		cfg.Paths.OutDir = *outDir
	}
	if *levels != "" {
		cfg.Forecast.Levels = strings.Split(*levels, ",")
	}
	if *cutoff != "" {
		cfg.Forecast.CutoffWeek = *cutoff
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		slog.Error("failed to resolve paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("failed to create directories", "error", err)
		os.Exit(1)
	}

	cfg.Logging.FilePath = paths.LogFile(filepath.Base(cfg.Logging.FilePath))
	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    infrastructure.ServiceName,
		ServiceVersion: infrastructure.ServiceVersion,
		Environment:    "cli",
		TraceExporter:  *traceExporter,
		MetricExporter: "prometheus",
		EnableTracing:  *traceExporter != "none",
		EnableMetrics:  true,
		SampleRatio:    1.0,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize observability", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := pipeline.NewManager(cfg, paths, logger)
	if providers.Tracer != nil {
		manager = manager.WithTracer(providers.Tracer)
	}
	if providers.Meter != nil {
		metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			logger.Error("failed to create metrics", "error", err)
			os.Exit(1)
		}
		manager = manager.WithMetrics(metrics)
	}

	start := time.Now()
	state, err := manager.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	providers.Shutdown(shutdownCtx)
	cancel()

	if err != nil {
		logger.Error("pipeline run failed",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("pipeline run succeeded",
		slog.String("run_id", state.RunID),
		slog.String("cutoff_week", state.Cutoff.String()),
		slog.Duration("duration", time.Since(start)),
		slog.String("out_dir", paths.OutDir))

	for level, result := range state.Results {
		fmt.Printf("%s: %d entities, %d predictions, overall wmape %.1f%%, %d dedicated models (%d fallbacks)\n",
			level, len(result.Summaries), len(result.Predictions),
			result.OverallWMAPE, result.DedicatedModels, result.FallbackFits)
	}
	fmt.Printf("artifacts written to %s\n", paths.OutDir)
}
