package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
)

// Runs records step outputs into per-run journals.
type Runs struct {
	options

	logger   *slog.Logger
	journals persistence.JournalRepository
	validate *validator.Validate
}

func NewRuns(logger *slog.Logger, journals persistence.JournalRepository, opts ...Option) *Runs {
	return &Runs{
		options:  newOptions(opts),
		logger:   logger.With("module", "runs"),
		journals: journals,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RecordStepRequest writes Output under StepName in the scope at Path.
// CreateScope allows the next iteration of a loop on Path to be opened.
type RecordStepRequest struct {
	Path        execution.Path        `json:"path"        validate:"dive"`
	StepName    string                `json:"stepName"    validate:"required"`
	Output      *execution.StepOutput `json:"output"      validate:"required"`
	CreateScope bool                  `json:"createScope"`
}

// RunSummary condenses a journal for status displays.
type RunSummary struct {
	RunID          string   `json:"runId"`
	Steps          int      `json:"steps"`
	LastStep       string   `json:"lastStep,omitempty"`
	LastFailedStep string   `json:"lastFailedStep,omitempty"`
	FailedStepPath string   `json:"failedStepPath,omitempty"`
	LoopSteps      []string `json:"loopSteps"`
}

// RecordStep upserts one step output, starting the journal of runID if
// none is stored yet.
func (r *Runs) RecordStep(ctx context.Context, runID string, req RecordStepRequest) (*execution.Journal, error) {
	if runID == "" {
		return nil, NewValidationError("record_step", "RUN_ID_REQUIRED", "run id is required", ErrRunIDRequired)
	}

	if err := r.validate.Struct(req); err != nil {
		return nil, NewValidationError("record_step", "INVALID_REQUEST", err.Error(), errors.Join(ErrInvalidRequest, err))
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "runs.record_step",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.StepNameKey, req.StepName))
	defer span.End()

	journal, err := r.journals.Get(ctx, runID)
	if persistence.IsJournalNotFound(err) {
		journal, err = execution.NewJournal(), nil
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load journal: %w", err)
	}

	if err := journal.UpsertStep(req.Path, req.StepName, req.Output, req.CreateScope); err != nil {
		otelhelper.SetError(span, err)

		return nil, stepPathError("record_step", err)
	}

	if err := r.journals.Save(ctx, runID, journal); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save journal: %w", err)
	}

	if r.metrics != nil {
		r.metrics.StepRecorded(string(req.Output.Status))
	}

	r.logger.DebugContext(ctx, "step recorded",
		slog.String("run_id", runID),
		slog.String("path", req.Path.String()),
		slog.String("step", req.StepName),
		slog.String("status", string(req.Output.Status)))

	r.publish(ctx, r.logger, runID,
		events.NewRunStepRecorded(runID, req.Path.String(), req.StepName, string(req.Output.Status)))

	return journal, nil
}

func (r *Runs) Journal(ctx context.Context, runID string) (*execution.Journal, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "runs.journal",
		attribute.String(otelhelper.RunIDKey, runID))
	defer span.End()

	journal, err := r.journals.Get(ctx, runID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return journal, nil
}

// Summary reports the last step, the last failed step and the loop steps of a run.
func (r *Runs) Summary(ctx context.Context, runID string) (*RunSummary, error) {
	journal, err := r.Journal(ctx, runID)
	if err != nil {
		return nil, err
	}

	return Summarize(runID, journal), nil
}

// Summarize builds the summary of journal.
func Summarize(runID string, journal *execution.Journal) *RunSummary {
	summary := &RunSummary{
		RunID:     runID,
		Steps:     journal.Steps().Len(),
		LoopSteps: []string{},
	}

	if last, ok := journal.FindLastStepWithStatus(nil); ok {
		summary.LastStep = last
	}

	failed := execution.StepStatusFailed
	if name, ok := journal.FindLastStepWithStatus(&failed); ok {
		summary.LastFailedStep = name

		if path, ok := journal.PathToStep(name); ok {
			summary.FailedStepPath = path.String()
		}
	}

	for name := range journal.LoopSteps() {
		summary.LoopSteps = append(summary.LoopSteps, name)
	}

	sort.Strings(summary.LoopSteps)

	return summary
}
