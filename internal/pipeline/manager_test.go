package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStage struct {
	id       string
	validate error
	execute  error
	ran      *[]string
}

func (s *stubStage) ID() string   { return s.id }
func (s *stubStage) Name() string { return s.id }

func (s *stubStage) Validate(_ *RunState) error { return s.validate }

func (s *stubStage) Execute(_ context.Context, _ *RunState) error {
	if s.ran != nil {
		*s.ran = append(*s.ran, s.id)
	}
	return s.execute
}

func TestManagerRunsStagesInOrder(t *testing.T) {
	var ran []string
	m := NewManagerWithStages(nil,
		&stubStage{id: "first", ran: &ran},
		&stubStage{id: "second", ran: &ran},
		&stubStage{id: "third", ran: &ran},
	)

	state, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ran)

	for _, st := range state.Stages() {
		assert.Equal(t, StageStatusCompleted, st.CurrentStatus())
	}
	assert.NotEmpty(t, state.RunID)
}

func TestManagerStopsOnFailure(t *testing.T) {
	var ran []string
	m := NewManagerWithStages(nil,
		&stubStage{id: "first", ran: &ran},
		&stubStage{id: "second", ran: &ran, execute: assert.AnError},
		&stubStage{id: "third", ran: &ran},
	)

	state, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, []string{"first", "second"}, ran, "third never executes")

	assert.Equal(t, StageStatusCompleted, state.Stage("first").CurrentStatus())
	assert.Equal(t, StageStatusFailed, state.Stage("second").CurrentStatus())
	assert.Equal(t, StageStatusSkipped, state.Stage("third").CurrentStatus())
}

func TestManagerSkipsOnValidationFailure(t *testing.T) {
	var ran []string
	m := NewManagerWithStages(nil,
		&stubStage{id: "gate", validate: assert.AnError, ran: &ran},
	)

	state, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, ran, "a stage that fails validation never executes")
	assert.Equal(t, StageStatusSkipped, state.Stage("gate").CurrentStatus())
}

func TestStageStateLifecycle(t *testing.T) {
	st := NewStageState("enrich", "Enrichment Cascade")
	assert.Equal(t, StageStatusPending, st.CurrentStatus())
	assert.Zero(t, st.Duration())

	st.Start()
	assert.Equal(t, StageStatusActive, st.CurrentStatus())

	st.Complete()
	assert.Equal(t, StageStatusCompleted, st.CurrentStatus())
	assert.True(t, st.Duration() >= 0)
}

func TestStageStateFailRecordsError(t *testing.T) {
	st := NewStageState("forecast", "Hierarchical Forecast")
	st.Start()
	st.Fail(assert.AnError)

	assert.Equal(t, StageStatusFailed, st.CurrentStatus())
	assert.Equal(t, assert.AnError.Error(), st.Error)
}

func TestRunStateStageLookup(t *testing.T) {
	state := NewRunState()
	state.AddStage(NewStageState("load", "Load Ledger"))

	assert.NotNil(t, state.Stage("load"))
	assert.Nil(t, state.Stage("missing"))
	assert.Len(t, state.Stages(), 1)
}
