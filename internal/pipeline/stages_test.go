package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"dpcli/internal/config"
	"dpcli/internal/enrich"
	"dpcli/internal/infrastructure"
	"dpcli/internal/ledger"
)

func weekRecord(year, week int) enrich.Record {
	return enrich.Record{TransactionRow: ledger.TransactionRow{
		EntityID: "X",
		Week:     ledger.Week{Year: year, Week: week},
	}}
}

func TestDeriveCutoff(t *testing.T) {
	var records []enrich.Record
	for w := 1; w <= 10; w++ {
		records = append(records, weekRecord(2024, w), weekRecord(2024, w))
	}

	cutoff, err := deriveCutoff(records)
	require.NoError(t, err)
	// 10 distinct weeks hold out the most recent two.
	assert.Equal(t, ledger.Week{Year: 2024, Week: 8}, cutoff)
}

func TestDeriveCutoffCapsHoldout(t *testing.T) {
	var records []enrich.Record
	for w := 1; w <= 52; w++ {
		records = append(records, weekRecord(2024, w))
	}

	cutoff, err := deriveCutoff(records)
	require.NoError(t, err)
	assert.Equal(t, ledger.Week{Year: 2024, Week: 48}, cutoff, "holdout never exceeds 4 weeks")
}

func TestDeriveCutoffMinimalHistory(t *testing.T) {
	cutoff, err := deriveCutoff([]enrich.Record{weekRecord(2024, 1), weekRecord(2024, 2)})
	require.NoError(t, err)
	assert.Equal(t, ledger.Week{Year: 2024, Week: 1}, cutoff)

	_, err = deriveCutoff([]enrich.Record{weekRecord(2024, 1)})
	assert.Error(t, err, "one week cannot be split")
}

// writeTestLedger emits a ledger with two entities over weekCount ISO weeks
// starting 2024-W01. SKU-2 ships a row with a missing price so the cascade
// has work to do.
func writeTestLedger(t *testing.T, path string, weekCount int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	var b strings.Builder
	b.WriteString("order_date,entity_id,order_id,quantity,unit_price,line_revenue,customer_id,category_id,region\n")

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday of 2024-W01
	for w := 0; w < weekCount; w++ {
		date := start.AddDate(0, 0, 7*w).Format("2006-01-02")
		qty := 10 + w%3
		fmt.Fprintf(&b, "%s,SKU-1,ORD-%d,%d,25.00,%d.00,C-1,CAT-A,EMEA\n", date, w*2, qty, qty*25)
		fmt.Fprintf(&b, "%s,SKU-2,ORD-%d,5,,60.00,C-2,CAT-A,Unknown\n", date, w*2+1)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestPipelineEndToEnd(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BaseDir = base
	require.NoError(t, cfg.Validate())

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	writeTestLedger(t, paths.LedgerFile, 15)

	state, err := NewManager(cfg, paths, nil).Run(context.Background())
	require.NoError(t, err)

	for _, st := range state.Stages() {
		assert.Equal(t, StageStatusCompleted, st.CurrentStatus(), st.ID)
	}

	// Enrichment resolved SKU-2's missing prices from its revenue.
	require.NotNil(t, state.Report)
	assert.Equal(t, 30, state.Report.Before.Rows)
	assert.Zero(t, state.Report.Strategies.Unresolved)

	// 15 distinct weeks derive a 3-week holdout.
	assert.Equal(t, ledger.Week{Year: 2024, Week: 12}, state.Cutoff)

	result, ok := state.Results[ledger.LevelProduct]
	require.True(t, ok)
	assert.Len(t, result.Summaries, 2)
	for _, p := range result.Predictions {
		assert.GreaterOrEqual(t, p.Predicted, 0.0)
	}

	// Artifacts on disk.
	assert.FileExists(t, paths.EnrichedLedgerCSV)
	assert.FileExists(t, paths.EnrichmentReportJSON)
	assert.FileExists(t, paths.FeatureTableCSV(ledger.LevelProduct))
	assert.FileExists(t, paths.PredictionsCSV(ledger.LevelProduct))
	assert.FileExists(t, paths.EntitySummaryCSV(ledger.LevelProduct))
	assert.FileExists(t, paths.ResultJSON(ledger.LevelProduct))
	assert.FileExists(t, paths.SummaryWorkbook)
}

func TestPipelineRecordsMetrics(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BaseDir = base
	require.NoError(t, cfg.Validate())

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	writeTestLedger(t, paths.LedgerFile, 15)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := infrastructure.CreatePipelineMetrics(provider.Meter("test"))
	require.NoError(t, err)

	state, err := NewManager(cfg, paths, nil).WithMetrics(metrics).Run(context.Background())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			sums[m.Name] = total
		}
	}

	assert.Equal(t, int64(len(state.Stages())), sums["pipeline_stage_executions_total"])
	assert.Zero(t, sums["pipeline_stage_errors_total"])
	assert.Equal(t, int64(30), sums["enrichment_rows_processed_total"])
	assert.Zero(t, sums["enrichment_rows_unresolved_total"])
	assert.GreaterOrEqual(t, sums["forecast_models_trained_total"], int64(1))
	assert.Equal(t, int64(len(state.Results[ledger.LevelProduct].Predictions)),
		sums["forecast_predictions_total"])
}

func TestPipelineFailsWithoutLedger(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	state, err := NewManager(cfg, paths, nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageStatusFailed, state.Stage("load").CurrentStatus())
	assert.Equal(t, StageStatusSkipped, state.Stage("enrich").CurrentStatus())
}

func TestEnrichStageRequiresRows(t *testing.T) {
	stage := NewEnrichStage(nil)
	assert.Error(t, stage.Validate(NewRunState()))
}

func TestExportStageRequiresResults(t *testing.T) {
	cfg := config.Default()
	stage := NewExportStage(cfg, nil, nil)
	assert.Error(t, stage.Validate(NewRunState()))
}
