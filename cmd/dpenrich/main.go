// dpenrich runs the enrichment cascade alone: it reads the transaction
// ledger, resolves missing prices and revenues, and writes the enriched
// ledger plus the audit report without training any models.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dpcli/internal/config"
	"dpcli/internal/exporter"
	"dpcli/internal/infrastructure"
	"dpcli/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "config file (defaults to config.yaml if present)")
	ledgerFile := flag.String("ledger", "", "transaction ledger CSV (overrides config)")
	catalogFile := flag.String("catalog", "", "price catalog CSV (overrides config)")
	outDir := flag.String("out", "", "output directory for artifacts (overrides config)")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := pipeline.NewManagerWithStages(logger,
		pipeline.NewLoadStage(paths, logger),
		pipeline.NewEnrichStage(logger),
	)
	state, err := manager.Run(ctx)
	if err != nil {
		logger.Error("enrichment run failed",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	exp := exporter.New(paths, logger)
	if err := exp.WriteEnrichedLedger(ctx, state.Records); err != nil {
		logger.Error("failed to write enriched ledger", "error", err)
		os.Exit(1)
	}
	if err := exp.WriteEnrichmentReport(ctx, state.Report); err != nil {
		logger.Error("failed to write enrichment report", "error", err)
		os.Exit(1)
	}

	report := state.Report
	fmt.Printf("%d rows enriched: %d truly missing, %d from entity averages, %d from catalog, %d unresolved (%.1f%% resolved)\n",
		report.After.Rows,
		report.Strategies.TrulyMissing,
		report.Strategies.FromEntityAvg,
		report.Strategies.FromCatalog,
		report.Strategies.Unresolved,
		report.EnrichmentRate())
	fmt.Printf("enriched ledger: %s\nenrichment report: %s\n",
		paths.EnrichedLedgerCSV, paths.EnrichmentReportJSON)
}
