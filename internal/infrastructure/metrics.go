package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the application-specific instruments.
type PipelineMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Pipeline metrics
	StageExecutionsTotal metric.Int64Counter
	StageDuration        metric.Float64Histogram
	StageErrors          metric.Int64Counter

	// Enrichment metrics
	RowsProcessed  metric.Int64Counter
	PricesResolved metric.Int64Counter
	RowsUnresolved metric.Int64Counter

	// Training metrics
	ModelsTrained   metric.Int64Counter
	FallbackFits    metric.Int64Counter
	PredictionsMade metric.Int64Counter
}

// CreatePipelineMetrics registers the domain instruments on the meter.
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.StageExecutionsTotal, err = meter.Int64Counter(
		"pipeline_stage_executions_total",
		metric.WithDescription("Total number of pipeline stage executions"),
	); err != nil {
		return nil, err
	}
	if m.StageDuration, err = meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.StageErrors, err = meter.Int64Counter(
		"pipeline_stage_errors_total",
		metric.WithDescription("Total number of failed pipeline stages"),
	); err != nil {
		return nil, err
	}

	if m.RowsProcessed, err = meter.Int64Counter(
		"enrichment_rows_processed_total",
		metric.WithDescription("Total ledger rows passed through enrichment"),
	); err != nil {
		return nil, err
	}
	if m.PricesResolved, err = meter.Int64Counter(
		"enrichment_prices_resolved_total",
		metric.WithDescription("Total missing prices resolved, by strategy"),
	); err != nil {
		return nil, err
	}
	if m.RowsUnresolved, err = meter.Int64Counter(
		"enrichment_rows_unresolved_total",
		metric.WithDescription("Total rows left unresolved after the cascade"),
	); err != nil {
		return nil, err
	}

	if m.ModelsTrained, err = meter.Int64Counter(
		"forecast_models_trained_total",
		metric.WithDescription("Total models trained, by scope"),
	); err != nil {
		return nil, err
	}
	if m.FallbackFits, err = meter.Int64Counter(
		"forecast_fallback_fits_total",
		metric.WithDescription("Dedicated fits that failed and fell back to the pooled model"),
	); err != nil {
		return nil, err
	}
	if m.PredictionsMade, err = meter.Int64Counter(
		"forecast_predictions_total",
		metric.WithDescription("Total predictions produced"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordStage records one stage execution.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("stage", stage)}

	m.StageExecutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := attribute.String("status", "success")
	if err != nil {
		status = attribute.String("status", "failure")
		m.StageErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(append(attrs, status)...))
}

// RecordEnrichment records the outcome of one cascade pass.
func (m *PipelineMetrics) RecordEnrichment(ctx context.Context, rows, fromEntityAvg, fromCatalog, unresolved int) {
	if m == nil {
		return
	}
	m.RowsProcessed.Add(ctx, int64(rows))
	m.PricesResolved.Add(ctx, int64(fromEntityAvg),
		metric.WithAttributes(attribute.String("strategy", "entity_avg")))
	m.PricesResolved.Add(ctx, int64(fromCatalog),
		metric.WithAttributes(attribute.String("strategy", "catalog")))
	m.RowsUnresolved.Add(ctx, int64(unresolved))
}

// RecordTraining records the outcome of one forecasting run.
func (m *PipelineMetrics) RecordTraining(ctx context.Context, level string, dedicated, fallbacks, predictions int) {
	if m == nil {
		return
	}
	levelAttr := attribute.String("level", level)

	m.ModelsTrained.Add(ctx, 1, metric.WithAttributes(levelAttr, attribute.String("scope", "pooled")))
	m.ModelsTrained.Add(ctx, int64(dedicated), metric.WithAttributes(levelAttr, attribute.String("scope", "dedicated")))
	m.FallbackFits.Add(ctx, int64(fallbacks), metric.WithAttributes(levelAttr))
	m.PredictionsMade.Add(ctx, int64(predictions), metric.WithAttributes(levelAttr))
}
