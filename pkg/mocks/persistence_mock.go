// Package mocks provides testify mocks of the stepflow storage and event interfaces.
package mocks

import (
	"context"
	"encoding/json"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	FlowVersions *MockFlowVersionRepository
	Journals     *MockJournalRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		FlowVersions: &MockFlowVersionRepository{},
		Journals:     &MockJournalRepository{},
	}
}

func (m *MockPersistence) FlowVersionRepository() persistence.FlowVersionRepository {
	return m.FlowVersions
}

func (m *MockPersistence) JournalRepository() persistence.JournalRepository {
	return m.Journals
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockFlowVersionRepository is a mock implementation of persistence.FlowVersionRepository interface.
type MockFlowVersionRepository struct {
	mock.Mock
}

func (m *MockFlowVersionRepository) Save(ctx context.Context, fv *models.FlowVersion) error {
	args := m.Called(ctx, fv)

	return args.Error(0)
}

func (m *MockFlowVersionRepository) GetByID(ctx context.Context, id string) (json.RawMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockFlowVersionRepository) ListByFlow(ctx context.Context, flowID string) ([]json.RawMessage, error) {
	args := m.Called(ctx, flowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockFlowVersionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockJournalRepository is a mock implementation of persistence.JournalRepository interface.
type MockJournalRepository struct {
	mock.Mock
}

func (m *MockJournalRepository) Save(ctx context.Context, runID string, journal *execution.Journal) error {
	args := m.Called(ctx, runID, journal)

	return args.Error(0)
}

func (m *MockJournalRepository) Get(ctx context.Context, runID string) (*execution.Journal, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*execution.Journal), args.Error(1)
}

func (m *MockJournalRepository) Delete(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)

	return args.Error(0)
}
