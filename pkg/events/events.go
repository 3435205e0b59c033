// Package events defines the notifications published when flow versions and runs change.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the default topic every stepflow event is published to.
const Topic = "stepflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Flow version lifecycle events.
	FlowVersionCreatedEvent EventType = "flow_version.created"
	FlowVersionUpdatedEvent EventType = "flow_version.updated"
	FlowVersionLockedEvent  EventType = "flow_version.locked"
	FlowVersionDeletedEvent EventType = "flow_version.deleted"

	// Run journal events.
	RunStepRecordedEvent EventType = "run.step.recorded"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flow_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
		Metadata:  make(map[string]any),
	}
}

type FlowVersionCreated struct {
	BaseEvent

	FlowVersionID string `json:"flow_version_id"`
	DisplayName   string `json:"display_name"`
	SchemaVersion string `json:"schema_version"`
	CreatedBy     string `json:"created_by,omitempty"`
}

func (e FlowVersionCreated) GetType() EventType {
	return FlowVersionCreatedEvent
}

// FlowVersionUpdated is published after an operation was applied to a draft.
type FlowVersionUpdated struct {
	BaseEvent

	FlowVersionID string `json:"flow_version_id"`
	Operation     string `json:"operation"`
	Valid         bool   `json:"valid"`
	UpdatedBy     string `json:"updated_by,omitempty"`
}

func (e FlowVersionUpdated) GetType() EventType {
	return FlowVersionUpdatedEvent
}

type FlowVersionLocked struct {
	BaseEvent

	FlowVersionID string `json:"flow_version_id"`
	LockedBy      string `json:"locked_by,omitempty"`
}

func (e FlowVersionLocked) GetType() EventType {
	return FlowVersionLockedEvent
}

type FlowVersionDeleted struct {
	BaseEvent

	FlowVersionID string `json:"flow_version_id"`
}

func (e FlowVersionDeleted) GetType() EventType {
	return FlowVersionDeletedEvent
}

// RunStepRecorded is published every time a step output is written to a run journal.
type RunStepRecorded struct {
	BaseEvent

	RunID    string `json:"run_id"`
	Path     string `json:"path,omitempty"`
	StepName string `json:"step_name"`
	Status   string `json:"status"`
}

func (e RunStepRecorded) GetType() EventType {
	return RunStepRecordedEvent
}

func NewFlowVersionCreated(flowID, flowVersionID, displayName, schemaVersion, createdBy string) FlowVersionCreated {
	return FlowVersionCreated{
		BaseEvent:     NewBaseEvent(FlowVersionCreatedEvent, flowID),
		FlowVersionID: flowVersionID,
		DisplayName:   displayName,
		SchemaVersion: schemaVersion,
		CreatedBy:     createdBy,
	}
}

func NewFlowVersionUpdated(flowID, flowVersionID, operation string, valid bool, updatedBy string) FlowVersionUpdated {
	return FlowVersionUpdated{
		BaseEvent:     NewBaseEvent(FlowVersionUpdatedEvent, flowID),
		FlowVersionID: flowVersionID,
		Operation:     operation,
		Valid:         valid,
		UpdatedBy:     updatedBy,
	}
}

func NewFlowVersionLocked(flowID, flowVersionID, lockedBy string) FlowVersionLocked {
	return FlowVersionLocked{
		BaseEvent:     NewBaseEvent(FlowVersionLockedEvent, flowID),
		FlowVersionID: flowVersionID,
		LockedBy:      lockedBy,
	}
}

func NewFlowVersionDeleted(flowID, flowVersionID string) FlowVersionDeleted {
	return FlowVersionDeleted{
		BaseEvent:     NewBaseEvent(FlowVersionDeletedEvent, flowID),
		FlowVersionID: flowVersionID,
	}
}

func NewRunStepRecorded(runID, path, stepName, status string) RunStepRecorded {
	return RunStepRecorded{
		BaseEvent: NewBaseEvent(RunStepRecordedEvent, ""),
		RunID:     runID,
		Path:      path,
		StepName:  stepName,
		Status:    status,
	}
}
