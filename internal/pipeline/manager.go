package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dpcli/internal/config"
	"dpcli/internal/infrastructure"
)

// Manager executes the stages of a run in order, recording state, logs and
// metrics for each.
type Manager struct {
	stages  []Stage
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
	tracer  trace.Tracer
}

// NewManager assembles the standard stage sequence for a full run.
func NewManager(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		stages: []Stage{
			NewLoadStage(paths, logger),
			NewEnrichStage(logger),
			NewFeatureStage(cfg, logger),
			NewForecastStage(cfg, logger),
			NewExportStage(cfg, paths, logger),
		},
		logger: logger,
	}
}

// NewManagerWithStages builds a manager over an explicit stage list. Tests
// and partial runs (enrich-only) use this.
func NewManagerWithStages(logger *slog.Logger, stages ...Stage) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{stages: stages, logger: logger}
}

// WithMetrics attaches pipeline metrics recording.
func (m *Manager) WithMetrics(metrics *infrastructure.PipelineMetrics) *Manager {
	m.metrics = metrics
	return m
}

// WithTracer attaches a tracer; each stage becomes a span.
func (m *Manager) WithTracer(tracer trace.Tracer) *Manager {
	m.tracer = tracer
	return m
}

// Run executes all stages in order. On failure the remaining stages are
// marked skipped and the partial state is returned alongside the error.
func (m *Manager) Run(ctx context.Context) (*RunState, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	state := NewRunState()

	for _, stage := range m.stages {
		state.AddStage(NewStageState(stage.ID(), stage.Name()))
	}

	m.logger.InfoContext(ctx, "pipeline run started",
		slog.String("run_id", state.RunID),
		slog.Int("stages", len(m.stages)))

	for i, stage := range m.stages {
		if err := m.executeStage(ctx, state, stage); err != nil {
			for _, rest := range m.stages[i+1:] {
				state.Stage(rest.ID()).Skip(fmt.Sprintf("skipped: stage %s failed", stage.ID()))
			}
			m.logger.ErrorContext(ctx, "pipeline run failed",
				slog.String("run_id", state.RunID),
				slog.String("stage", stage.ID()),
				slog.String("error", err.Error()))
			return state, fmt.Errorf("stage %s: %w", stage.ID(), err)
		}
	}

	m.logger.InfoContext(ctx, "pipeline run complete",
		slog.String("run_id", state.RunID),
		slog.Duration("duration", time.Since(state.StartedAt)))
	return state, nil
}

func (m *Manager) executeStage(ctx context.Context, state *RunState, stage Stage) error {
	stageState := state.Stage(stage.ID())

	if m.tracer != nil {
		var span trace.Span
		ctx, span = m.tracer.Start(ctx, "pipeline."+stage.ID(),
			trace.WithAttributes(attribute.String("run_id", state.RunID)))
		defer span.End()
	}

	if err := stage.Validate(state); err != nil {
		stageState.Skip(fmt.Sprintf("validation failed: %v", err))
		return err
	}

	m.logger.InfoContext(ctx, "stage started",
		slog.String("run_id", state.RunID),
		slog.String("stage", stage.ID()))

	stageState.Start()
	start := time.Now()
	err := stage.Execute(ctx, state)
	duration := time.Since(start)

	m.metrics.RecordStage(ctx, stage.ID(), duration, err)

	if err != nil {
		stageState.Fail(err)
		infrastructure.RecordError(ctx, err)
		return err
	}

	stageState.Complete()
	m.logger.InfoContext(ctx, "stage complete",
		slog.String("run_id", state.RunID),
		slog.String("stage", stage.ID()),
		slog.Duration("duration", duration))

	if m.metrics != nil && stage.ID() == "enrich" && state.Report != nil {
		counts := state.Report.Strategies
		m.metrics.RecordEnrichment(ctx, state.Report.After.Rows,
			counts.FromEntityAvg, counts.FromCatalog, counts.Unresolved)
	}
	if m.metrics != nil && stage.ID() == "forecast" {
		for level, result := range state.Results {
			m.metrics.RecordTraining(ctx, string(level),
				result.DedicatedModels, result.FallbackFits, len(result.Predictions))
		}
	}
	return nil
}
