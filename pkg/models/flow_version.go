package models

import "time"

// FlowVersionState represents the lifecycle state of a flow version.
type FlowVersionState string

const (
	FlowVersionStateDraft  FlowVersionState = "DRAFT"  // Editable
	FlowVersionStateLocked FlowVersionState = "LOCKED" // Published, read-only
)

// DefaultTriggerName is the name of the trigger of an empty flow.
const DefaultTriggerName = "trigger"

// FlowVersion wraps one step tree with its metadata.
type FlowVersion struct {
	ID            string
	FlowID        string
	FolderID      string
	DisplayName   string
	Trigger       Trigger
	Valid         bool
	State         FlowVersionState
	SchemaVersion string
	ConnectionIDs []string
	AgentIDs      []string
	UpdatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewEmptyTrigger returns the placeholder trigger of a new flow.
func NewEmptyTrigger() *EmptyTrigger {
	return &EmptyTrigger{StepBase: StepBase{
		Name:        DefaultTriggerName,
		DisplayName: "Select Trigger",
		Valid:       false,
	}}
}

// IsLocked reports whether the flow version can no longer be edited.
func (f *FlowVersion) IsLocked() bool {
	return f.State == FlowVersionStateLocked
}
