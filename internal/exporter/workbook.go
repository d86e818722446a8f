package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"dpcli/internal/enrich"
	"dpcli/internal/forecast"
)

// WriteWorkbook assembles the run summary workbook: one overview sheet for
// the enrichment outcome and one sheet per forecast level.
func (e *Exporter) WriteWorkbook(ctx context.Context, report *enrich.Report, results []*forecast.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const overview = "Overview"
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	setRow := func(sheet string, row int, values ...interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	overviewRows := [][]interface{}{
		{"Generated At", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{},
		{"Enrichment", "Before", "After"},
		{"Rows", report.Before.Rows, report.After.Rows},
		{"Total Revenue", report.Before.TotalRevenue, report.After.TotalRevenue},
		{"Zero-Price Rows", report.Before.ZeroPriceRows, report.After.ZeroPriceRows},
		{"Zero-Revenue Rows", report.Before.ZeroRevenueRows, report.After.ZeroRevenueRows},
		{"Unknown Regions", report.Before.UnknownRegions, report.After.UnknownRegions},
		{"Missing Customers", report.Before.MissingCustomers, report.After.MissingCustomers},
		{},
		{"Revenue Delta", report.After.RevenueDelta},
		{"Revenue Delta %", report.After.RevenueDeltaPct},
		{"Enrichment Rate %", report.EnrichmentRate()},
		{"Avg Quality Score", report.After.AvgQualityScore},
		{},
		{"Quality Tier", "Rows"},
		{"excellent", report.Tiers[enrich.TierExcellent]},
		{"good", report.Tiers[enrich.TierGood]},
		{"fair", report.Tiers[enrich.TierFair]},
		{"poor", report.Tiers[enrich.TierPoor]},
	}
	for i, row := range overviewRows {
		if len(row) == 0 {
			continue
		}
		if err := setRow(overview, i+1, row...); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
	}

	for _, result := range results {
		sheet := fmt.Sprintf("Forecast %s", result.Level)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}

		tiers := map[forecast.Tier]int{}
		for _, s := range result.Summaries {
			tiers[s.Confidence]++
		}

		levelRows := [][]interface{}{
			{"Cutoff Week", result.CutoffWeek.String()},
			{"Train Rows", result.TrainRows},
			{"Test Rows", result.TestRows},
			{"Entities", len(result.Summaries)},
			{"Dedicated Models", result.DedicatedModels},
			{"Fallback Fits", result.FallbackFits},
			{"Overall WMAPE", result.OverallWMAPE},
			{},
			{"Confidence", "Entities"},
			{"High", tiers[forecast.TierHigh]},
			{"Medium", tiers[forecast.TierMedium]},
			{"Low", tiers[forecast.TierLow]},
		}
		for i, row := range levelRows {
			if len(row) == 0 {
				continue
			}
			if err := setRow(sheet, i+1, row...); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
		}
	}

	if err := f.SaveAs(e.paths.SummaryWorkbook); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	e.logger.InfoContext(ctx, "summary workbook written",
		slog.String("path", e.paths.SummaryWorkbook),
		slog.Int("levels", len(results)))
	return nil
}
