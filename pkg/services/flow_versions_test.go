package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/migrations"
	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/operations"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newEngine(logger *slog.Logger) *operations.Engine {
	pipeline := migrations.New(logger)

	return operations.NewEngine(logger,
		operations.StepValidatorFunc(func(models.Step) bool { return true }),
		operations.WithMigrator(pipeline))
}

func newFlowVersions(t *testing.T, repo persistence.FlowVersionRepository, opts ...Option) *FlowVersions {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)

	return NewFlowVersions(logger, repo, newEngine(logger), migrations.New(logger), opts...)
}

func TestFlowVersions_Create(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("events.FlowVersionCreated")).Return(nil)

	repo := file.NewPersistence(t.TempDir()).FlowVersionRepository()
	service := newFlowVersions(t, repo, WithPublisher(bus))

	created, err := service.Create(t.Context(), CreateFlowVersionRequest{FlowID: "flow-1", DisplayName: "Orders"})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.FlowVersionStateDraft, created.State)
	assert.Equal(t, migrations.CurrentSchemaVersion, created.SchemaVersion)
	assert.Equal(t, models.StepTypeEmpty, created.Trigger.Type())
	assert.False(t, created.Valid)
	assert.True(t, fixedNow.Equal(created.CreatedAt))

	fetched, err := service.Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.DisplayName, fetched.DisplayName)
	assert.Equal(t, models.DefaultTriggerName, fetched.Trigger.Base().Name)

	bus.AssertNumberOfCalls(t, "Publish", 1)
}

func TestFlowVersions_CreateValidation(t *testing.T) {
	service := newFlowVersions(t, file.NewPersistence(t.TempDir()).FlowVersionRepository())

	_, err := service.Create(t.Context(), CreateFlowVersionRequest{DisplayName: "Orders"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "INVALID_REQUEST", serr.Code)
}

func TestFlowVersions_Apply(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	m := metrics.New()
	repo := file.NewPersistence(t.TempDir()).FlowVersionRepository()
	service := newFlowVersions(t, repo, WithPublisher(bus), WithMetrics(m))

	created, err := service.Create(t.Context(), CreateFlowVersionRequest{FlowID: "flow-1", DisplayName: "Orders"})
	require.NoError(t, err)

	renamed, err := service.Apply(t.Context(), created.ID, operations.Request{
		Type:    operations.OperationChangeName,
		Request: &operations.ChangeNameRequest{DisplayName: "Invoices"},
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Invoices", renamed.DisplayName)
	assert.Equal(t, "user-1", renamed.UpdatedBy)

	stored, err := service.Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Invoices", stored.DisplayName)

	_, err = service.Apply(t.Context(), created.ID, operations.Request{
		Type:    operations.OperationLockFlow,
		Request: &operations.LockFlowRequest{},
	}, "user-1")
	require.NoError(t, err)

	_, err = service.Apply(t.Context(), created.ID, operations.Request{
		Type:    operations.OperationChangeName,
		Request: &operations.ChangeNameRequest{DisplayName: "Again"},
	}, "user-1")
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
	assert.False(t, IsUnprocessableError(err))

	published := map[events.EventType]int{}
	for _, call := range bus.Calls {
		published[call.Arguments.Get(2).(interface{ GetType() events.EventType }).GetType()]++
	}

	assert.Equal(t, map[events.EventType]int{
		events.FlowVersionCreatedEvent: 1,
		events.FlowVersionUpdatedEvent: 1,
		events.FlowVersionLockedEvent:  1,
	}, published)
}

func TestFlowVersions_ApplyErrors(t *testing.T) {
	repo := file.NewPersistence(t.TempDir()).FlowVersionRepository()
	service := newFlowVersions(t, repo)

	_, err := service.Apply(t.Context(), "missing", operations.Request{
		Type:    operations.OperationChangeName,
		Request: &operations.ChangeNameRequest{DisplayName: "x"},
	}, "")
	assert.True(t, IsNotFoundError(err))

	created, err := service.Create(t.Context(), CreateFlowVersionRequest{FlowID: "flow-1", DisplayName: "Orders"})
	require.NoError(t, err)

	_, err = service.Apply(t.Context(), created.ID, operations.Request{
		Type:    operations.OperationDeleteAction,
		Request: &operations.DeleteActionRequest{Names: []string{"nope"}},
	}, "")
	require.Error(t, err)
}

func TestFlowVersions_GetMigratesLegacyDocument(t *testing.T) {
	legacy := json.RawMessage(`{
		"id": "legacy", "flowId": "flow-1", "displayName": "Legacy", "state": "DRAFT",
		"trigger": {"name": "trigger", "displayName": "Select Trigger", "type": "EMPTY", "valid": false, "settings": {}}
	}`)

	repo := &mocks.MockFlowVersionRepository{}
	repo.On("GetByID", mock.Anything, "legacy").Return(legacy, nil)

	m := metrics.New()
	service := newFlowVersions(t, repo, WithMetrics(m))

	fv, err := service.Get(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, migrations.CurrentSchemaVersion, fv.SchemaVersion)
	assert.Equal(t, []string{}, fv.ConnectionIDs)

	repo.AssertExpectations(t)
}

func TestFlowVersions_ListAndDelete(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	repo := file.NewPersistence(t.TempDir()).FlowVersionRepository()
	service := newFlowVersions(t, repo, WithPublisher(bus))

	_, err := service.List(t.Context(), "")
	assert.ErrorIs(t, err, ErrFlowIDRequired)

	first, err := service.Create(t.Context(), CreateFlowVersionRequest{FlowID: "flow-1", DisplayName: "v1"})
	require.NoError(t, err)
	_, err = service.Create(t.Context(), CreateFlowVersionRequest{FlowID: "flow-1", DisplayName: "v2"})
	require.NoError(t, err)
	_, err = service.Create(t.Context(), CreateFlowVersionRequest{FlowID: "flow-2", DisplayName: "other"})
	require.NoError(t, err)

	versions, err := service.List(t.Context(), "flow-1")
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	require.NoError(t, service.Delete(t.Context(), first.ID))

	versions, err = service.List(t.Context(), "flow-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	err = service.Delete(t.Context(), first.ID)
	assert.True(t, IsNotFoundError(err))

	deleted := bus.Calls[len(bus.Calls)-1].Arguments.Get(2).(events.FlowVersionDeleted)
	assert.Equal(t, "flow-1", deleted.FlowID)
	assert.Equal(t, first.ID, deleted.FlowVersionID)
}
