// Package pipeline orchestrates the forecasting run as a sequence of stages:
// load, enrich, features, forecast, export. Each stage reads and writes the
// shared run state; the manager owns ordering, logging and metrics.
package pipeline

import (
	"context"
	"sync"
	"time"
)

// Stage is one step of a pipeline run.
type Stage interface {
	// ID returns the unique identifier for this stage.
	ID() string

	// Name returns the human-readable name for this stage.
	Name() string

	// Validate checks whether the stage can run against the current state.
	Validate(state *RunState) error

	// Execute runs the stage, mutating the run state.
	Execute(ctx context.Context, state *RunState) error
}

// StageStatus is the lifecycle state of a stage within a run.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState is the runtime state of one stage.
type StageState struct {
	mu        sync.RWMutex
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    StageStatus `json:"status"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// NewStageState creates a pending stage state.
func NewStageState(id, name string) *StageState {
	return &StageState{
		ID:     id,
		Name:   name,
		Status: StageStatusPending,
	}
}

// Start marks the stage active.
func (s *StageState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StageStatusActive
}

// Complete marks the stage completed.
func (s *StageState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusCompleted
}

// Fail marks the stage failed with the given error.
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Skip marks the stage skipped with a reason.
func (s *StageState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusSkipped
	s.Message = reason
}

// CurrentStatus returns the stage status under the read lock.
func (s *StageState) CurrentStatus() StageStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns how long the stage ran (or has been running).
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}
