package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"dpcli/internal/enrich"
	"dpcli/internal/feature"
	"dpcli/internal/forecast"
	"dpcli/internal/ledger"
)

// RunState is the shared state of one pipeline run. Stages execute
// sequentially, so the data fields need no locking; the stage registry is
// guarded because the API may inspect a run in flight.
type RunState struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	mu     sync.RWMutex
	stages []*StageState

	// Inputs, populated by the load stage.
	Rows    []ledger.TransactionRow `json:"-"`
	Catalog ledger.Catalog          `json:"-"`

	// Enrichment outputs.
	Records []enrich.Record `json:"-"`
	Report  *enrich.Report  `json:"-"`

	// Cutoff actually used, configured or derived from the data.
	Cutoff ledger.Week `json:"cutoff_week"`

	// Per-level outputs.
	Features map[ledger.Level][]feature.Row       `json:"-"`
	Results  map[ledger.Level]*forecast.Result    `json:"-"`
}

// NewRunState creates an empty run with a fresh run ID.
func NewRunState() *RunState {
	return &RunState{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Features:  make(map[ledger.Level][]feature.Row),
		Results:   make(map[ledger.Level]*forecast.Result),
	}
}

// AddStage registers a stage's runtime state.
func (s *RunState) AddStage(state *StageState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, state)
}

// Stage returns the runtime state of a stage by ID, or nil.
func (s *RunState) Stage(id string) *StageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stages {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// Stages returns the registered stage states in execution order.
func (s *RunState) Stages() []*StageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*StageState(nil), s.stages...)
}
