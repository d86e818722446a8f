package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"dpcli/internal/config"
	"dpcli/internal/enrich"
	apperrors "dpcli/internal/errors"
	"dpcli/internal/exporter"
	"dpcli/internal/feature"
	"dpcli/internal/forecast"
	"dpcli/internal/ledger"
)

// LoadStage reads the transaction ledger and the optional price catalog.
type LoadStage struct {
	paths  *config.Paths
	logger *slog.Logger
}

func NewLoadStage(paths *config.Paths, logger *slog.Logger) *LoadStage {
	return &LoadStage{paths: paths, logger: logger}
}

func (s *LoadStage) ID() string   { return "load" }
func (s *LoadStage) Name() string { return "Load Ledger" }

func (s *LoadStage) Validate(_ *RunState) error {
	if s.paths.LedgerFile == "" {
		return apperrors.NewConfigError("ledger file not configured", nil)
	}
	return nil
}

func (s *LoadStage) Execute(ctx context.Context, state *RunState) error {
	rows, err := ledger.ReadLedger(s.paths.LedgerFile)
	if err != nil {
		return apperrors.NewStorageError("read ledger", err)
	}
	if len(rows) == 0 {
		return apperrors.NewValidationError("ledger contains no usable rows")
	}
	state.Rows = rows

	catalog, err := ledger.ReadCatalog(s.paths.CatalogFile)
	if err != nil {
		return apperrors.NewStorageError("read catalog", err)
	}
	state.Catalog = catalog

	s.logger.InfoContext(ctx, "ledger loaded",
		slog.String("path", s.paths.LedgerFile),
		slog.Int("rows", len(rows)),
		slog.Int("catalog_entries", len(catalog)))
	return nil
}

// EnrichStage runs the enrichment cascade over the loaded ledger.
type EnrichStage struct {
	logger *slog.Logger
}

func NewEnrichStage(logger *slog.Logger) *EnrichStage {
	return &EnrichStage{logger: logger}
}

func (s *EnrichStage) ID() string   { return "enrich" }
func (s *EnrichStage) Name() string { return "Enrichment Cascade" }

func (s *EnrichStage) Validate(state *RunState) error {
	if len(state.Rows) == 0 {
		return apperrors.NewValidationError("no ledger rows loaded")
	}
	return nil
}

func (s *EnrichStage) Execute(ctx context.Context, state *RunState) error {
	cascade := enrich.NewCascade(state.Catalog, s.logger)
	records, report := cascade.Run(ctx, enrich.Wrap(state.Rows))

	state.Records = records
	state.Report = report

	s.logger.InfoContext(ctx, "enrichment complete",
		slog.Int("rows", len(records)),
		slog.Float64("enrichment_rate", report.EnrichmentRate()),
		slog.Int("unresolved", report.Strategies.Unresolved))
	return nil
}

// FeatureStage builds one feature table per configured entity level.
type FeatureStage struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewFeatureStage(cfg *config.Config, logger *slog.Logger) *FeatureStage {
	return &FeatureStage{cfg: cfg, logger: logger}
}

func (s *FeatureStage) ID() string   { return "features" }
func (s *FeatureStage) Name() string { return "Feature Builder" }

func (s *FeatureStage) Validate(state *RunState) error {
	if len(state.Records) == 0 {
		return apperrors.NewValidationError("no enriched records available")
	}
	return nil
}

func (s *FeatureStage) Execute(ctx context.Context, state *RunState) error {
	builder, err := feature.NewBuilder(s.cfg.FeatureConfig(), s.logger)
	if err != nil {
		return apperrors.NewConfigError("feature builder", err)
	}

	for _, level := range s.cfg.Levels() {
		rows, err := builder.Build(ctx, state.Records, level)
		if err != nil {
			return apperrors.NewTrainingError(fmt.Sprintf("build %s features", level), err)
		}
		// Builder.Build logs the per-level outcome itself.
		state.Features[level] = rows
	}
	return nil
}

// ForecastStage trains the model hierarchy and produces predictions per level.
type ForecastStage struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewForecastStage(cfg *config.Config, logger *slog.Logger) *ForecastStage {
	return &ForecastStage{cfg: cfg, logger: logger}
}

func (s *ForecastStage) ID() string   { return "forecast" }
func (s *ForecastStage) Name() string { return "Hierarchical Forecast" }

func (s *ForecastStage) Validate(state *RunState) error {
	if len(state.Features) == 0 {
		return apperrors.NewValidationError("no feature tables available")
	}
	return nil
}

func (s *ForecastStage) Execute(ctx context.Context, state *RunState) error {
	cutoff, configured, err := s.cfg.CutoffWeek()
	if err != nil {
		return apperrors.NewConfigError("cutoff week", err)
	}
	if !configured {
		cutoff, err = deriveCutoff(state.Records)
		if err != nil {
			return apperrors.NewTrainingError("derive cutoff", err)
		}
		s.logger.InfoContext(ctx, "cutoff derived from ledger",
			slog.String("cutoff_week", cutoff.String()))
	}
	state.Cutoff = cutoff

	for _, level := range s.cfg.Levels() {
		engine, err := forecast.NewEngine(s.cfg.ForecastConfig(level), s.cfg.FeatureConfig(), s.logger)
		if err != nil {
			return apperrors.NewConfigError("forecast engine", err)
		}
		result, err := engine.Run(ctx, state.Features[level], cutoff, level)
		if err != nil {
			return apperrors.NewTrainingError(fmt.Sprintf("forecast %s level", level), err)
		}
		state.Results[level] = result
	}
	return nil
}

// deriveCutoff picks a train/test boundary from the data when none is
// configured: the most recent weeks are held out, at most four and never
// more than a fifth of the distinct weeks.
func deriveCutoff(records []enrich.Record) (ledger.Week, error) {
	distinct := map[ledger.Week]struct{}{}
	for _, r := range records {
		distinct[r.Week] = struct{}{}
	}
	weeks := make([]ledger.Week, 0, len(distinct))
	for w := range distinct {
		weeks = append(weeks, w)
	}
	if len(weeks) < 2 {
		return ledger.Week{}, fmt.Errorf("need at least 2 distinct weeks, have %d", len(weeks))
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	holdout := len(weeks) / 5
	if holdout < 1 {
		holdout = 1
	}
	if holdout > 4 {
		holdout = 4
	}
	return weeks[len(weeks)-1-holdout], nil
}

// ExportStage persists every artifact of the run.
type ExportStage struct {
	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger
}

func NewExportStage(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *ExportStage {
	return &ExportStage{cfg: cfg, paths: paths, logger: logger}
}

func (s *ExportStage) ID() string   { return "export" }
func (s *ExportStage) Name() string { return "Export Artifacts" }

func (s *ExportStage) Validate(state *RunState) error {
	if state.Report == nil {
		return apperrors.NewValidationError("no enrichment report to export")
	}
	if len(state.Results) == 0 {
		return apperrors.NewValidationError("no forecast results to export")
	}
	return nil
}

func (s *ExportStage) Execute(ctx context.Context, state *RunState) error {
	if err := s.paths.EnsureDirectories(); err != nil {
		return apperrors.NewStorageError("prepare output directory", err)
	}
	exp := exporter.New(s.paths, s.logger)

	if err := exp.WriteEnrichedLedger(ctx, state.Records); err != nil {
		return apperrors.NewStorageError("export enriched ledger", err)
	}
	if err := exp.WriteEnrichmentReport(ctx, state.Report); err != nil {
		return apperrors.NewStorageError("export enrichment report", err)
	}

	results := make([]*forecast.Result, 0, len(state.Results))
	for _, level := range s.cfg.Levels() {
		result, ok := state.Results[level]
		if !ok {
			continue
		}
		if err := exp.WriteFeatureTable(ctx, level, state.Features[level], s.cfg.FeatureConfig()); err != nil {
			return apperrors.NewStorageError("export feature table", err)
		}
		if err := exp.WriteForecast(ctx, result); err != nil {
			return apperrors.NewStorageError("export forecast", err)
		}
		results = append(results, result)
	}

	if err := exp.WriteWorkbook(ctx, state.Report, results); err != nil {
		return apperrors.NewStorageError("export workbook", err)
	}
	return nil
}
