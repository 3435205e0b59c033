package operations

import (
	"encoding/json"
	"fmt"

	"github.com/dukex/stepflow/pkg/models"
)

// OperationType discriminates operation requests. Values are part of the
// wire contract: new kinds are appended, existing ones never change.
type OperationType string

const (
	OperationChangeName      OperationType = "CHANGE_NAME"
	OperationChangeFolder    OperationType = "CHANGE_FOLDER"
	OperationLockFlow        OperationType = "LOCK_FLOW"
	OperationImportFlow      OperationType = "IMPORT_FLOW"
	OperationUpdateTrigger   OperationType = "UPDATE_TRIGGER"
	OperationAddAction       OperationType = "ADD_ACTION"
	OperationUpdateAction    OperationType = "UPDATE_ACTION"
	OperationDeleteAction    OperationType = "DELETE_ACTION"
	OperationDuplicateAction OperationType = "DUPLICATE_ACTION"
	OperationMoveAction      OperationType = "MOVE_ACTION"
	OperationSetSkipAction   OperationType = "SET_SKIP_ACTION"
	OperationAddBranch       OperationType = "ADD_BRANCH"
	OperationDeleteBranch    OperationType = "DELETE_BRANCH"
	OperationDuplicateBranch OperationType = "DUPLICATE_BRANCH"
	OperationMoveBranch      OperationType = "MOVE_BRANCH"
)

// Request is a single edit: {"type": "...", "request": {...}}.
// Request holds a pointer to the payload struct matching Type.
type Request struct {
	Type    OperationType `json:"type"`
	Request any           `json:"request"`
}

type ChangeNameRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
}

type ChangeFolderRequest struct {
	FolderID string `json:"folderId"`
}

type LockFlowRequest struct{}

type ImportFlowRequest struct {
	DisplayName   string          `json:"displayName"             validate:"required"`
	Trigger       json.RawMessage `json:"trigger"                 validate:"required"`
	SchemaVersion *string         `json:"schemaVersion,omitempty"`
}

type UpdateTriggerRequest struct {
	models.TriggerEnvelope
}

type AddActionRequest struct {
	ParentStep                   string                `json:"parentStep"                             validate:"required"`
	StepLocationRelativeToParent models.StepLocation   `json:"stepLocationRelativeToParent,omitempty" validate:"omitempty,oneof=AFTER INSIDE_LOOP INSIDE_BRANCH"`
	BranchIndex                  *int                  `json:"branchIndex,omitempty"                  validate:"omitempty,min=0"`
	Action                       models.ActionEnvelope `json:"action"`
}

type UpdateActionRequest struct {
	models.ActionEnvelope
}

type DeleteActionRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required"`
}

type DuplicateActionRequest struct {
	StepName string `json:"stepName" validate:"required"`
}

type MoveActionRequest struct {
	Name                            string              `json:"name"                                      validate:"required"`
	NewParentStep                   string              `json:"newParentStep"                             validate:"required"`
	StepLocationRelativeToNewParent models.StepLocation `json:"stepLocationRelativeToNewParent,omitempty" validate:"omitempty,oneof=AFTER INSIDE_LOOP INSIDE_BRANCH"`
	BranchIndex                     *int                `json:"branchIndex,omitempty"                     validate:"omitempty,min=0"`
}

type SetSkipActionRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required"`
	Skip  bool     `json:"skip"`
}

type AddBranchRequest struct {
	StepName    string                     `json:"stepName"             validate:"required"`
	BranchIndex int                        `json:"branchIndex"          validate:"min=0"`
	BranchName  string                     `json:"branchName,omitempty"`
	Conditions  [][]models.BranchCondition `json:"conditions,omitempty"`
}

type DeleteBranchRequest struct {
	StepName    string `json:"stepName"    validate:"required"`
	BranchIndex int    `json:"branchIndex" validate:"min=0"`
}

type DuplicateBranchRequest struct {
	StepName    string `json:"stepName"    validate:"required"`
	BranchIndex int    `json:"branchIndex" validate:"min=0"`
}

type MoveBranchRequest struct {
	StepName    string `json:"stepName"    validate:"required"`
	SourceIndex int    `json:"sourceIndex"`
	TargetIndex int    `json:"targetIndex"`
}

func newPayload(t OperationType) (any, error) {
	switch t {
	case OperationChangeName:
		return &ChangeNameRequest{}, nil
	case OperationChangeFolder:
		return &ChangeFolderRequest{}, nil
	case OperationLockFlow:
		return &LockFlowRequest{}, nil
	case OperationImportFlow:
		return &ImportFlowRequest{}, nil
	case OperationUpdateTrigger:
		return &UpdateTriggerRequest{}, nil
	case OperationAddAction:
		return &AddActionRequest{}, nil
	case OperationUpdateAction:
		return &UpdateActionRequest{}, nil
	case OperationDeleteAction:
		return &DeleteActionRequest{}, nil
	case OperationDuplicateAction:
		return &DuplicateActionRequest{}, nil
	case OperationMoveAction:
		return &MoveActionRequest{}, nil
	case OperationSetSkipAction:
		return &SetSkipActionRequest{}, nil
	case OperationAddBranch:
		return &AddBranchRequest{}, nil
	case OperationDeleteBranch:
		return &DeleteBranchRequest{}, nil
	case OperationDuplicateBranch:
		return &DuplicateBranchRequest{}, nil
	case OperationMoveBranch:
		return &MoveBranchRequest{}, nil
	}

	return nil, fmt.Errorf("%w: unknown operation type %q", ErrFlowOperationInvalid, t)
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Type    OperationType   `json:"type"`
		Request json.RawMessage `json:"request"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	payload, err := newPayload(envelope.Type)
	if err != nil {
		return err
	}

	if len(envelope.Request) > 0 && string(envelope.Request) != "null" {
		if err := json.Unmarshal(envelope.Request, payload); err != nil {
			return fmt.Errorf("decoding %s request: %w", envelope.Type, err)
		}
	}

	r.Type = envelope.Type
	r.Request = payload

	return nil
}
