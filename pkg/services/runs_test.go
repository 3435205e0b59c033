package services

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func output(stepType models.StepType, status execution.StepStatus) *execution.StepOutput {
	return &execution.StepOutput{Type: stepType, Status: status}
}

func TestRuns_RecordStepAndSummary(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "run-1", mock.AnythingOfType("events.RunStepRecorded")).Return(nil)

	runs := NewRuns(slog.New(slog.DiscardHandler), file.NewPersistence(t.TempDir()).JournalRepository(),
		WithPublisher(bus), WithMetrics(metrics.New()))

	record := func(path execution.Path, name string, out *execution.StepOutput, create bool) {
		t.Helper()

		_, err := runs.RecordStep(t.Context(), "run-1", RecordStepRequest{Path: path, StepName: name, Output: out, CreateScope: create})
		require.NoError(t, err)
	}

	record(nil, "trigger", output(models.StepTypePieceTrigger, execution.StepStatusSucceeded), false)
	record(nil, "loop", output(models.StepTypeLoopOnItems, execution.StepStatusRunning), false)
	record(execution.Path{}.Append("loop", 0), "body", output(models.StepTypeCode, execution.StepStatusSucceeded), true)
	record(execution.Path{}.Append("loop", 1), "body", output(models.StepTypeCode, execution.StepStatusFailed), true)
	record(nil, "loop", output(models.StepTypeLoopOnItems, execution.StepStatusFailed), false)

	summary, err := runs.Summary(t.Context(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, &RunSummary{
		RunID:          "run-1",
		Steps:          2,
		LastStep:       "loop",
		LastFailedStep: "loop",
		FailedStepPath: "",
		LoopSteps:      []string{"loop"},
	}, summary)

	journal, err := runs.Journal(t.Context(), "run-1")
	require.NoError(t, err)

	loop, ok, err := journal.GetStep(nil, "loop")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, loop.Loop.Iterations, 2)

	bus.AssertNumberOfCalls(t, "Publish", 5)
}

func TestRuns_RecordStepErrors(t *testing.T) {
	runs := NewRuns(slog.New(slog.DiscardHandler), file.NewPersistence(t.TempDir()).JournalRepository())

	tests := []struct {
		name  string
		runID string
		req   RecordStepRequest
		check func(error) bool
	}{
		{
			name:  "missing run id",
			req:   RecordStepRequest{StepName: "a", Output: output(models.StepTypeCode, execution.StepStatusSucceeded)},
			check: IsValidationError,
		},
		{
			name:  "missing output",
			runID: "run-1",
			req:   RecordStepRequest{StepName: "a"},
			check: IsValidationError,
		},
		{
			name:  "unknown status",
			runID: "run-1",
			req:   RecordStepRequest{StepName: "a", Output: output(models.StepTypeCode, "DONE")},
			check: IsValidationError,
		},
		{
			name:  "null loop iteration",
			runID: "run-2",
			req: RecordStepRequest{
				StepName: "loop",
				Output: &execution.StepOutput{
					Type:   models.StepTypeLoopOnItems,
					Status: execution.StepStatusRunning,
					Loop:   &execution.LoopOutput{Iterations: []*execution.Scope{execution.NewScope(), nil}},
				},
			},
			check: IsValidationError,
		},
		{
			name:  "path into a missing loop",
			runID: "run-1",
			req: RecordStepRequest{
				Path:     execution.Path{}.Append("loop", 0),
				StepName: "a",
				Output:   output(models.StepTypeCode, execution.StepStatusSucceeded),
			},
			check: func(err error) bool { return errors.Is(err, ErrInvalidStepPath) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runs.RecordStep(t.Context(), tt.runID, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}

	_, err := runs.Summary(t.Context(), "run-2")
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestRuns_SummaryNotFound(t *testing.T) {
	journals := &mocks.MockJournalRepository{}
	journals.On("Get", mock.Anything, "run-x").
		Return(nil, persistence.NewJournalError("Get", "run-x", persistence.ErrJournalNotFound))

	runs := NewRuns(slog.New(slog.DiscardHandler), journals)

	_, err := runs.Summary(t.Context(), "run-x")
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestRuns_RecordStepPropagatesStoreErrors(t *testing.T) {
	journals := &mocks.MockJournalRepository{}
	journals.On("Get", mock.Anything, "run-1").Return(nil, errors.New("disk on fire"))

	runs := NewRuns(slog.New(slog.DiscardHandler), journals)

	_, err := runs.RecordStep(t.Context(), "run-1", RecordStepRequest{
		StepName: "a",
		Output:   output(models.StepTypeCode, execution.StepStatusSucceeded),
	})
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	journals.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestSummarize_FailedInsideLoop(t *testing.T) {
	journal := execution.NewJournal()
	require.NoError(t, journal.UpsertStep(nil, "loop", output(models.StepTypeLoopOnItems, execution.StepStatusRunning), false))
	require.NoError(t, journal.UpsertStep(execution.Path{}.Append("loop", 0), "body",
		output(models.StepTypeCode, execution.StepStatusFailed), true))

	summary := Summarize("run-1", journal)
	assert.Equal(t, "body", summary.LastFailedStep)
	assert.Equal(t, "loop[0]", summary.FailedStepPath)
	assert.Equal(t, "loop", summary.LastStep)
}
