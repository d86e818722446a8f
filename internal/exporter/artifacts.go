package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dpcli/internal/config"
	"dpcli/internal/enrich"
	"dpcli/internal/feature"
	"dpcli/internal/forecast"
	"dpcli/internal/ledger"
)

// Exporter writes all artifacts of a pipeline run into the configured
// output directory.
type Exporter struct {
	paths  *config.Paths
	csv    *CSVWriter
	logger *slog.Logger
}

// New creates an exporter for the resolved path layout.
func New(paths *config.Paths, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		paths:  paths,
		csv:    NewCSVWriter(paths.OutDir),
		logger: logger,
	}
}

// WriteEnrichedLedger persists the post-cascade ledger with provenance and
// quality columns appended to the transaction schema.
func (e *Exporter) WriteEnrichedLedger(ctx context.Context, records []enrich.Record) error {
	headers := []string{
		"entity_id", "week_id", "order_id", "quantity", "unit_price",
		"line_revenue", "customer_id", "category_id", "region",
		"price_source", "region_source", "customer_source",
		"quality_score", "quality_tier",
		"original_unit_price", "original_line_revenue",
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			rec.EntityID,
			rec.Week.String(),
			rec.OrderID,
			formatFloat(rec.Quantity),
			formatFloat(rec.UnitPrice),
			formatFloat(rec.LineRevenue),
			rec.CustomerID,
			rec.CategoryID,
			rec.Region,
			string(rec.PriceSource),
			rec.RegionSource,
			rec.CustomerSource,
			formatInt(rec.QualityScore),
			string(rec.QualityTier),
			formatFloat(rec.OriginalUnitPrice),
			formatFloat(rec.OriginalLineRevenue),
		}
	}

	if err := e.csv.WriteSimpleCSV(e.paths.EnrichedLedgerCSV, headers, rows); err != nil {
		return fmt.Errorf("write enriched ledger: %w", err)
	}
	e.logger.InfoContext(ctx, "enriched ledger written",
		slog.String("path", e.paths.EnrichedLedgerCSV),
		slog.Int("rows", len(records)))
	return nil
}

// WriteEnrichmentReport persists the audit report as JSON.
func (e *Exporter) WriteEnrichmentReport(ctx context.Context, report *enrich.Report) error {
	if err := writeJSON(e.paths.EnrichmentReportJSON, report); err != nil {
		return fmt.Errorf("write enrichment report: %w", err)
	}
	e.logger.InfoContext(ctx, "enrichment report written",
		slog.String("path", e.paths.EnrichmentReportJSON),
		slog.Float64("enrichment_rate", report.EnrichmentRate()))
	return nil
}

// WriteFeatureTable streams one level's feature table. Lag columns follow the
// model vector order so the table doubles as training documentation.
func (e *Exporter) WriteFeatureTable(ctx context.Context, level ledger.Level, rows []feature.Row, cfg feature.Config) error {
	headers := append([]string{
		"entity_id", "week_id", "week_of_year",
		"weekly_quantity", "weekly_revenue", "avg_price",
		"order_count", "customer_count", "avg_quality",
	}, feature.Names(cfg)...)

	path := e.paths.FeatureTableCSV(level)
	stream, err := e.csv.CreateStreamWriter(path, headers)
	if err != nil {
		return fmt.Errorf("write feature table: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.EntityID,
			row.Week.String(),
			formatInt(row.WeekOfYear),
			formatFloat(row.WeeklyQuantity),
			formatFloat(row.WeeklyRevenue),
			formatFloat(row.AvgPrice),
			formatInt(row.OrderCount),
			formatInt(row.CustomerCount),
			formatFloat(row.AvgQuality),
		}
		for _, v := range row.Vector(cfg) {
			record = append(record, formatFloat4(v))
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return fmt.Errorf("write feature table: %w", err)
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("write feature table: %w", err)
	}

	e.logger.InfoContext(ctx, "feature table written",
		slog.String("level", string(level)),
		slog.String("path", path),
		slog.Int("rows", len(rows)))
	return nil
}

// WriteForecast persists one level's prediction table, entity rollup and the
// full result JSON.
func (e *Exporter) WriteForecast(ctx context.Context, result *forecast.Result) error {
	predHeaders := []string{
		"entity_id", "week_id", "actual", "predicted",
		"model_scope", "wmape", "confidence_tier",
	}
	predRows := make([][]string, len(result.Predictions))
	for i, p := range result.Predictions {
		predRows[i] = []string{
			p.EntityID,
			p.Week.String(),
			formatFloat(p.Actual),
			formatFloat(p.Predicted),
			string(p.ModelScope),
			formatFloat(p.WMAPE),
			string(p.Confidence),
		}
	}
	if err := e.csv.WriteSimpleCSV(e.paths.PredictionsCSV(result.Level), predHeaders, predRows); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}

	sumHeaders := []string{
		"entity_id", "wmape", "confidence_tier", "model_scope",
		"train_weeks", "test_rows",
	}
	sumRows := make([][]string, len(result.Summaries))
	for i, s := range result.Summaries {
		sumRows[i] = []string{
			s.EntityID,
			formatFloat(s.WMAPE),
			string(s.Confidence),
			string(s.ModelScope),
			formatInt(s.TrainWeeks),
			formatInt(s.TestRows),
		}
	}
	if err := e.csv.WriteSimpleCSV(e.paths.EntitySummaryCSV(result.Level), sumHeaders, sumRows); err != nil {
		return fmt.Errorf("write entity summaries: %w", err)
	}

	if err := writeJSON(e.paths.ResultJSON(result.Level), result); err != nil {
		return fmt.Errorf("write result json: %w", err)
	}

	e.logger.InfoContext(ctx, "forecast artifacts written",
		slog.String("level", string(result.Level)),
		slog.Int("predictions", len(result.Predictions)),
		slog.Float64("overall_wmape", result.OverallWMAPE))
	return nil
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
