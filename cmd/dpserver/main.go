// dpserver serves the artifacts of a completed forecast run over the
// read-only results API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dpcli/internal/config"
	"dpcli/internal/infrastructure"
	transport "dpcli/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "config file (defaults to config.yaml if present)")
	outDir := flag.String("out", "", "artifact directory of the run to serve (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.Paths.OutDir = *outDir
	}
	if *port != 0 {
		cfg.Server.Port = *port
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

	cfg.Logging.FilePath = paths.LogFile(filepath.Base(cfg.Logging.FilePath))
	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		logger.Error("failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		providers.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *infrastructure.PipelineMetrics
	if providers.Meter != nil {
		metrics, err = infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			logger.Error("failed to create metrics", "error", err)
			os.Exit(1)
		}
		runtimeMetrics, err := infrastructure.NewRuntimeMetrics(providers.Meter)
		if err != nil {
			logger.Error("failed to create runtime metrics", "error", err)
			os.Exit(1)
		}
		runtimeMetrics.Start(ctx, 15*time.Second)
	}

	store := transport.NewResultStore()
	if err := store.LoadFromDisk(paths, cfg.Levels()); err != nil {
		// The API answers 404s until a run publishes artifacts.
		logger.Warn("no run artifacts loaded, serving empty store",
			slog.String("out_dir", paths.OutDir),
			slog.String("error", err.Error()))
	} else {
		logger.Info("run artifacts loaded", slog.String("out_dir", paths.OutDir))
	}

	srv := transport.NewServer(cfg, store, logger,
		transport.WithMetrics(metrics),
		transport.WithMetricsEndpoint(providers.PrometheusHTTP))

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
