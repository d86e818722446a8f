package forecast

import (
	"fmt"
	"time"

	"dpcli/internal/ledger"
)

// Scope tags which model produced a prediction.
type Scope string

const (
	ScopeDedicated Scope = "dedicated"
	ScopePooled    Scope = "pooled"
)

// Tier is the discrete confidence level attached to an entity's forecast.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// Prediction is one forecast row. WMAPE and Confidence are entity-level
// aggregates broadcast onto every row of the entity so downstream consumers
// can filter without re-aggregating.
type Prediction struct {
	EntityID   string      `json:"entity_id"`
	Week       ledger.Week `json:"week_id"`
	Actual     float64     `json:"actual"`
	Predicted  float64     `json:"predicted"`
	ModelScope Scope       `json:"model_scope"`
	WMAPE      float64     `json:"wmape"`
	Confidence Tier        `json:"confidence_tier"`
}

// EntitySummary is the per-entity rollup of a run.
type EntitySummary struct {
	EntityID   string  `json:"entity_id"`
	WMAPE      float64 `json:"wmape"`
	Confidence Tier    `json:"confidence_tier"`
	ModelScope Scope   `json:"model_scope"`
	TrainWeeks int     `json:"train_weeks"`
	TestRows   int     `json:"test_rows"`
}

// Result is the complete output of a forecasting run.
type Result struct {
	Level        ledger.Level    `json:"level"`
	CutoffWeek   ledger.Week     `json:"cutoff_week"`
	Predictions  []Prediction    `json:"predictions"`
	Summaries    []EntitySummary `json:"summaries"`
	OverallWMAPE float64         `json:"overall_wmape"`

	TrainRows       int `json:"train_rows"`
	TestRows        int `json:"test_rows"`
	DedicatedModels int `json:"dedicated_models"`
	FallbackFits    int `json:"fallback_fits"` // dedicated fits that failed and fell back
}

// Thresholds are the confidence cutoffs for one entity level. T1 < T2 and
// W1 > W2: the high tier demands both a lower error and a longer history.
type Thresholds struct {
	T1 float64 `yaml:"t1" json:"t1"` // wmape ceiling for High
	T2 float64 `yaml:"t2" json:"t2"` // wmape ceiling for Medium
	W1 int     `yaml:"w1" json:"w1"` // min train weeks for High
	W2 int     `yaml:"w2" json:"w2"` // min train weeks for Medium
}

// Validate enforces the ordering the tier semantics rely on.
func (t Thresholds) Validate() error {
	if t.T1 <= 0 || t.T2 <= t.T1 {
		return fmt.Errorf("confidence thresholds: need 0 < T1 < T2, got T1=%.1f T2=%.1f", t.T1, t.T2)
	}
	if t.W2 < 0 || t.W1 <= t.W2 {
		return fmt.Errorf("confidence thresholds: need W1 > W2 >= 0, got W1=%d W2=%d", t.W1, t.W2)
	}
	return nil
}

// Config parameterizes one run of the engine. All knobs are injected; there
// is no process-wide state.
type Config struct {
	// MinTrainRows is the sufficiency gate: an entity gets a dedicated model
	// only with at least this many training rows and one test row.
	MinTrainRows int
	// Workers bounds the parallel dedicated-model fan-out. Zero or negative
	// selects a single worker.
	Workers int
	// TrainBudget is the wall-clock budget per entity-training task; fits
	// that exceed it fall back to the pooled model. Zero disables the budget.
	TrainBudget time.Duration
	// Ridge is the L2 regularization strength of the default regressor.
	Ridge float64
	// Confidence holds the tier thresholds for the level being forecast.
	Confidence Thresholds
}

// DefaultConfig returns production defaults for the product level.
func DefaultConfig() Config {
	return Config{
		MinTrainRows: 4,
		Workers:      4,
		TrainBudget:  30 * time.Second,
		Ridge:        1.0,
		Confidence:   Thresholds{T1: 40, T2: 60, W1: 15, W2: 10},
	}
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.MinTrainRows < 1 {
		return fmt.Errorf("forecast config: min train rows %d out of range", c.MinTrainRows)
	}
	if c.Ridge < 0 {
		return fmt.Errorf("forecast config: negative ridge %.3f", c.Ridge)
	}
	return c.Confidence.Validate()
}
