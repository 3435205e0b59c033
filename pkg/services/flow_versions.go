package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/migrations"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/operations"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Option configures the optional collaborators of a service.
type Option func(*options)

type options struct {
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	now       func() time.Time
}

// WithPublisher publishes lifecycle events to publisher.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock replaces the clock stamping created and updated times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{
		tracer: otelhelper.NoopTracer(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func (o options) publish(ctx context.Context, logger *slog.Logger, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_type", string(event.GetType())),
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// FlowVersions manages the lifecycle of flow versions. Stored documents are
// migrated to the current schema whenever they are read.
type FlowVersions struct {
	options

	logger   *slog.Logger
	repo     persistence.FlowVersionRepository
	engine   *operations.Engine
	pipeline *migrations.Pipeline
	validate *validator.Validate
}

func NewFlowVersions(
	logger *slog.Logger,
	repo persistence.FlowVersionRepository,
	engine *operations.Engine,
	pipeline *migrations.Pipeline,
	opts ...Option,
) *FlowVersions {
	return &FlowVersions{
		options:  newOptions(opts),
		logger:   logger.With("module", "flow_versions"),
		repo:     repo,
		engine:   engine,
		pipeline: pipeline,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type CreateFlowVersionRequest struct {
	FlowID      string `json:"flowId"      validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
	FolderID    string `json:"folderId"`
	CreatedBy   string `json:"createdBy"`
}

// Create stores a new draft holding only the empty trigger.
func (s *FlowVersions) Create(ctx context.Context, req CreateFlowVersionRequest) (*models.FlowVersion, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow_versions.create",
		attribute.String(otelhelper.FlowIDKey, req.FlowID))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("create", "INVALID_REQUEST", err.Error(), errors.Join(ErrInvalidRequest, err))
	}

	now := s.now()
	fv := &models.FlowVersion{
		ID:            uuid.New().String(),
		FlowID:        req.FlowID,
		FolderID:      req.FolderID,
		DisplayName:   req.DisplayName,
		Trigger:       models.NewEmptyTrigger(),
		Valid:         false,
		State:         models.FlowVersionStateDraft,
		SchemaVersion: migrations.CurrentSchemaVersion,
		ConnectionIDs: []string{},
		AgentIDs:      []string{},
		UpdatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Save(ctx, fv); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save flow version: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.FlowVersionIDKey, fv.ID))

	s.logger.InfoContext(ctx, "flow version created",
		slog.String("flow_id", fv.FlowID),
		slog.String("flow_version_id", fv.ID))

	s.publish(ctx, s.logger, fv.ID,
		events.NewFlowVersionCreated(fv.FlowID, fv.ID, fv.DisplayName, fv.SchemaVersion, req.CreatedBy))

	return fv, nil
}

// Get loads a flow version, migrating the stored document when it predates
// the current schema.
func (s *FlowVersions) Get(ctx context.Context, id string) (*models.FlowVersion, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow_versions.get",
		attribute.String(otelhelper.FlowVersionIDKey, id))
	defer span.End()

	raw, err := s.repo.GetByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	fv, err := s.load(raw)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.SchemaVersionKey, fv.SchemaVersion))

	return fv, nil
}

func (s *FlowVersions) load(raw []byte) (*models.FlowVersion, error) {
	doc, err := migrations.DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode flow version: %w", err)
	}

	from := doc.SchemaVersion()

	fv, err := s.pipeline.Type(s.pipeline.Apply(doc))
	if err != nil {
		return nil, err
	}

	if from != migrations.CurrentSchemaVersion && s.metrics != nil {
		s.metrics.MigratedOnLoad(from)
	}

	return fv, nil
}

// List returns every version of flowID, oldest first.
func (s *FlowVersions) List(ctx context.Context, flowID string) ([]*models.FlowVersion, error) {
	if flowID == "" {
		return nil, NewValidationError("list", "FLOW_ID_REQUIRED", "flow_id is required", ErrFlowIDRequired)
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow_versions.list",
		attribute.String(otelhelper.FlowIDKey, flowID))
	defer span.End()

	docs, err := s.repo.ListByFlow(ctx, flowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list flow versions: %w", err)
	}

	versions := make([]*models.FlowVersion, 0, len(docs))

	for _, raw := range docs {
		fv, err := s.load(raw)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		versions = append(versions, fv)
	}

	return versions, nil
}

// Apply runs one operation against the stored version and saves the result.
func (s *FlowVersions) Apply(ctx context.Context, id string, req operations.Request, updatedBy string) (*models.FlowVersion, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow_versions.apply",
		attribute.String(otelhelper.FlowVersionIDKey, id),
		attribute.String(otelhelper.OperationKey, string(req.Type)))
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	started := time.Now()
	updated, err := s.engine.Apply(current, req)

	if s.metrics != nil {
		s.metrics.ObserveOperation(string(req.Type), time.Since(started), err)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	updated.UpdatedAt = s.now()
	if updatedBy != "" {
		updated.UpdatedBy = updatedBy
	}

	if err := s.repo.Save(ctx, updated); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save flow version: %w", err)
	}

	s.logger.InfoContext(ctx, "operation applied",
		slog.String("flow_version_id", id),
		slog.String("operation", string(req.Type)),
		slog.Bool("valid", updated.Valid))

	if req.Type == operations.OperationLockFlow && !current.IsLocked() {
		s.publish(ctx, s.logger, id, events.NewFlowVersionLocked(updated.FlowID, id, updatedBy))
	} else {
		s.publish(ctx, s.logger, id,
			events.NewFlowVersionUpdated(updated.FlowID, id, string(req.Type), updated.Valid, updatedBy))
	}

	return updated, nil
}

func (s *FlowVersions) Delete(ctx context.Context, id string) error {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow_versions.delete",
		attribute.String(otelhelper.FlowVersionIDKey, id))
	defer span.End()

	raw, err := s.repo.GetByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	_, flowID, _, err := persistence.Header(raw)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to read flow version header: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	s.logger.InfoContext(ctx, "flow version deleted", slog.String("flow_version_id", id))
	s.publish(ctx, s.logger, id, events.NewFlowVersionDeleted(flowID, id))

	return nil
}
