package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"dpcli/internal/feature"
	"dpcli/internal/ledger"
)

// Engine trains the pooled/dedicated model hierarchy and produces the
// prediction table.
type Engine struct {
	cfg          Config
	feats        feature.Config
	newRegressor func() Regressor
	logger       *slog.Logger
}

// NewEngine validates the configuration and returns an engine backed by the
// default ridge regressor.
func NewEngine(cfg Config, feats feature.Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := feats.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:          cfg,
		feats:        feats,
		newRegressor: func() Regressor { return NewRidge(cfg.Ridge) },
		logger:       logger,
	}, nil
}

// UseRegressor swaps the model factory. The engine only assumes the
// Regressor contract, nothing about the algorithm family.
func (e *Engine) UseRegressor(factory func() Regressor) {
	if factory != nil {
		e.newRegressor = factory
	}
}

// Run executes a full train/predict/classify pass over the feature table.
func (e *Engine) Run(ctx context.Context, rows []feature.Row, cutoff ledger.Week, level ledger.Level) (*Result, error) {
	train, test := Split(rows, cutoff)
	if len(train) == 0 {
		return nil, fmt.Errorf("hierarchical run: no training rows at or before cutoff %s", cutoff)
	}
	if len(test) == 0 {
		return nil, fmt.Errorf("hierarchical run: no evaluation rows after cutoff %s", cutoff)
	}

	gates := SufficiencyGate(train, test, e.cfg.MinTrainRows)

	// The pooled model must exist before any prediction is made. It is the
	// fallback for every entity the gate rejects and for every failed fit.
	pooled := e.newRegressor()
	if err := pooled.Fit(matrix(train, e.feats), targets(train)); err != nil {
		return nil, fmt.Errorf("pooled model fit: %w", err)
	}

	trainGroups := groupByEntity(train)
	dedicated, fallbacks, err := e.trainDedicated(ctx, trainGroups, gates)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "model hierarchy trained",
		slog.String("level", string(level)),
		slog.Int("train_rows", len(train)),
		slog.Int("dedicated_models", len(dedicated)),
		slog.Int("fallback_fits", fallbacks))

	result := &Result{
		Level:           level,
		CutoffWeek:      cutoff,
		TrainRows:       len(train),
		TestRows:        len(test),
		DedicatedModels: len(dedicated),
		FallbackFits:    fallbacks,
	}
	if err := e.predict(test, pooled, dedicated, gates, result); err != nil {
		return nil, err
	}
	return result, nil
}

// trainDedicated fans out one fit per eligible entity, bounded by the worker
// limit. A failed or over-budget fit is a routing decision: the entity is
// logged and left to the pooled model.
func (e *Engine) trainDedicated(ctx context.Context, trainGroups map[string][]feature.Row, gates map[string]Gate) (map[string]Regressor, int, error) {
	var (
		mu        sync.Mutex
		dedicated = make(map[string]Regressor)
		fallbacks int
	)

	g, ctx := errgroup.WithContext(ctx)
	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, entity := range sortedKeys(trainGroups) {
		if !gates[entity].Dedicated {
			continue
		}
		rows := trainGroups[entity]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			model := e.newRegressor()
			err := e.fitWithBudget(ctx, model, matrix(rows, e.feats), targets(rows))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fallbacks++
				e.logger.WarnContext(ctx, "dedicated fit failed, entity falls back to pooled model",
					slog.String("entity", entity),
					slog.Int("train_rows", len(rows)),
					slog.String("error", err.Error()))
				return nil
			}
			dedicated[entity] = model
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("dedicated training cancelled: %w", err)
	}
	return dedicated, fallbacks, nil
}

// fitWithBudget bounds a single fit by the configured wall-clock budget. A
// pathological fit that ignores the deadline is abandoned, not joined.
func (e *Engine) fitWithBudget(ctx context.Context, model Regressor, features [][]float64, target []float64) error {
	if e.cfg.TrainBudget <= 0 {
		return model.Fit(features, target)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TrainBudget)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- model.Fit(features, target) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("training budget exceeded: %w", ctx.Err())
	}
}

// predict routes every test row to its entity's dedicated model when one
// exists, else to the pooled model. Routing is total: no test entity is ever
// dropped, and predictions are clipped to non-negative demand.
func (e *Engine) predict(test []feature.Row, pooled Regressor, dedicated map[string]Regressor, gates map[string]Gate, result *Result) error {
	seen := make(map[string]struct{}, len(test))
	testGroups := groupByEntity(test)

	var overallActual, overallPredicted []float64

	for _, entity := range sortedKeys(testGroups) {
		rows := testGroups[entity]

		model, scope := pooled, ScopePooled
		if m, ok := dedicated[entity]; ok {
			model, scope = m, ScopeDedicated
		}

		actual := make([]float64, len(rows))
		predicted := make([]float64, len(rows))
		for i, row := range rows {
			key := row.EntityID + "|" + row.Week.String()
			if _, dup := seen[key]; dup {
				return fmt.Errorf("ambiguous prediction output: duplicate row for %s week %s", row.EntityID, row.Week)
			}
			seen[key] = struct{}{}

			pred := model.Predict(row.Vector(e.feats))
			if pred < 0 {
				pred = 0
			}
			actual[i] = row.WeeklyQuantity
			predicted[i] = pred
		}

		wmape := WMAPE(actual, predicted)
		trainWeeks := gates[entity].TrainRows
		tier := e.cfg.Confidence.Classify(wmape, trainWeeks)

		for i, row := range rows {
			result.Predictions = append(result.Predictions, Prediction{
				EntityID:   entity,
				Week:       row.Week,
				Actual:     actual[i],
				Predicted:  predicted[i],
				ModelScope: scope,
				WMAPE:      wmape,
				Confidence: tier,
			})
		}
		result.Summaries = append(result.Summaries, EntitySummary{
			EntityID:   entity,
			WMAPE:      wmape,
			Confidence: tier,
			ModelScope: scope,
			TrainWeeks: trainWeeks,
			TestRows:   len(rows),
		})

		overallActual = append(overallActual, actual...)
		overallPredicted = append(overallPredicted, predicted...)
	}

	result.OverallWMAPE = WMAPE(overallActual, overallPredicted)
	return nil
}

func matrix(rows []feature.Row, cfg feature.Config) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Vector(cfg)
	}
	return out
}

func targets(rows []feature.Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.WeeklyQuantity
	}
	return out
}
