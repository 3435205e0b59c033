// Package testutil provides step tree builders for tests.
package testutil

import (
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/google/uuid"
)

// FixedTime is the creation time of flow versions built by FlowVersion.
var FixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// FlowVersion creates a draft flow version owning trigger, with default values that can be overridden.
func FlowVersion(trigger models.Trigger, overrides ...func(*models.FlowVersion)) *models.FlowVersion {
	fv := &models.FlowVersion{
		ID:            uuid.NewString(),
		FlowID:        uuid.NewString(),
		DisplayName:   "Test Flow",
		Trigger:       trigger,
		Valid:         true,
		State:         models.FlowVersionStateDraft,
		SchemaVersion: "5",
		CreatedAt:     FixedTime,
		UpdatedAt:     FixedTime,
	}

	for _, override := range overrides {
		override(fv)
	}

	return fv
}

// WithLocked marks the flow version as locked.
func WithLocked() func(*models.FlowVersion) {
	return func(fv *models.FlowVersion) {
		fv.State = models.FlowVersionStateLocked
	}
}

// PieceTrigger creates a valid webhook trigger followed by next.
func PieceTrigger(name string, next models.Action) *models.PieceTrigger {
	return &models.PieceTrigger{
		StepBase: models.StepBase{Name: name, DisplayName: "Webhook", Valid: true, NextAction: next},
		Settings: models.PieceTriggerSettings{
			PieceName:    "webhook",
			PieceVersion: "0.1.0",
			TriggerName:  "catch_webhook",
			Input:        map[string]any{},
		},
	}
}

// Code creates a valid code action.
func Code(name string) *models.CodeAction {
	return &models.CodeAction{
		ActionBase: models.ActionBase{StepBase: models.StepBase{Name: name, DisplayName: name, Valid: true}},
		Settings: models.CodeSettings{
			SourceCode: models.SourceCode{Code: "export const code = async () => true", PackageJSON: "{}"},
			Input:      map[string]any{},
		},
	}
}

// Piece creates a valid piece action.
func Piece(name, pieceName, actionName string, input map[string]any) *models.PieceAction {
	return &models.PieceAction{
		ActionBase: models.ActionBase{StepBase: models.StepBase{Name: name, DisplayName: name, Valid: true}},
		Settings: models.PieceActionSettings{
			PieceName:    pieceName,
			PieceVersion: "0.1.0",
			ActionName:   actionName,
			Input:        input,
		},
	}
}

// Loop creates a valid loop whose body starts with first.
func Loop(name, items string, first models.Action) *models.LoopOnItemsAction {
	return &models.LoopOnItemsAction{
		ActionBase:      models.ActionBase{StepBase: models.StepBase{Name: name, DisplayName: name, Valid: true}},
		Settings:        models.LoopOnItemsSettings{Items: items},
		FirstLoopAction: first,
	}
}

// Router creates a valid router with the given branches and no children.
func Router(name string, branches ...models.Branch) *models.RouterAction {
	r := &models.RouterAction{
		ActionBase: models.ActionBase{StepBase: models.StepBase{Name: name, DisplayName: name, Valid: true}},
		Settings:   models.RouterSettings{ExecutionType: models.RouterExecuteFirstMatch},
		Branches:   make([]models.RouterBranch, len(branches)),
	}

	for i, b := range branches {
		r.Branches[i].Branch = b
	}

	return r
}

// ConditionBranch creates a condition branch with the default conditions.
func ConditionBranch(name string) models.Branch {
	return models.Branch{
		BranchType: models.BranchTypeCondition,
		BranchName: name,
		Conditions: models.DefaultConditions(),
	}
}

// Chain links actions through nextAction and returns the head.
func Chain(actions ...models.Action) models.Action {
	for i := 0; i < len(actions)-1; i++ {
		actions[i].Base().NextAction = actions[i+1]
	}

	if len(actions) == 0 {
		return nil
	}

	return actions[0]
}
