// Package operations implements the structural edits of a flow version.
package operations

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dukex/stepflow/pkg/flow"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

// StepValidator decides whether a step satisfies the shape declared by its type.
type StepValidator interface {
	ValidateStep(step models.Step) bool
}

// StepValidatorFunc adapts a function to StepValidator.
type StepValidatorFunc func(step models.Step) bool

func (f StepValidatorFunc) ValidateStep(step models.Step) bool {
	return f(step)
}

// TriggerMigrator upgrades an imported trigger tree to the current schema.
type TriggerMigrator interface {
	MigrateTrigger(raw json.RawMessage, schemaVersion string) (models.Trigger, error)
}

type Engine struct {
	logger        *slog.Logger
	stepValidator StepValidator
	migrator      TriggerMigrator
	validate      *validator.Validate
}

type Option func(*Engine)

// WithMigrator sets the migrator used by IMPORT_FLOW.
func WithMigrator(m TriggerMigrator) Option {
	return func(e *Engine) {
		e.migrator = m
	}
}

func NewEngine(logger *slog.Logger, stepValidator StepValidator, opts ...Option) *Engine {
	e := &Engine{
		logger:        logger,
		stepValidator: stepValidator,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Apply runs req against a copy of fv and returns the copy. fv is never modified.
func (e *Engine) Apply(fv *models.FlowVersion, req Request) (*models.FlowVersion, error) {
	if fv == nil || models.IsNil(fv.Trigger) {
		return nil, invalid(req.Type, "", "flow version has no trigger")
	}

	if req.Request == nil {
		return nil, invalid(req.Type, "", "request payload is required")
	}

	if err := e.validate.Struct(req.Request); err != nil {
		return nil, invalidRequest(req.Type, err)
	}

	out := fv.Clone()

	if out.IsLocked() && req.Type != OperationLockFlow {
		return nil, &Error{
			Op:      string(req.Type),
			Code:    CodeFlowOperationInvalid,
			Message: "flow version is locked",
			Err:     ErrFlowVersionLocked,
		}
	}

	x := &edit{engine: e, fv: out, op: req.Type}
	if err := x.dispatch(req.Request); err != nil {
		e.logger.Debug("operation rejected",
			slog.String("operation", string(req.Type)),
			slog.String("flow_version_id", fv.ID),
			slog.Any("error", err))

		return nil, err
	}

	refreshDerived(out)

	e.logger.Debug("operation applied",
		slog.String("operation", string(req.Type)),
		slog.String("flow_version_id", fv.ID),
		slog.Bool("valid", out.Valid))

	return out, nil
}

// IsFlowValid reports whether every step is valid or skipped.
func IsFlowValid(trigger models.Trigger) bool {
	valid := true

	flow.Walk(trigger, func(s models.Step) bool {
		if s.Base().Valid {
			return true
		}

		if a, ok := s.(models.Action); ok && a.IsSkipped() {
			return true
		}

		valid = false

		return false
	})

	return valid
}

func refreshDerived(fv *models.FlowVersion) {
	fv.Valid = IsFlowValid(fv.Trigger)
	fv.ConnectionIDs = flow.ExtractConnectionIDs(fv.Trigger)
	fv.AgentIDs = flow.ExtractAgentIDs(fv.Trigger)
}

func invalidRequest(op OperationType, err error) *Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return invalid(op, "", "invalid field %s: failed on %q", verrs[0].Namespace(), verrs[0].Tag())
	}

	return invalid(op, "", "%v", err)
}

// edit applies one request to a private flow version.
type edit struct {
	engine *Engine
	fv     *models.FlowVersion
	op     OperationType
}

func (x *edit) dispatch(payload any) error {
	switch p := payload.(type) {
	case *ChangeNameRequest:
		return x.changeName(p)
	case *ChangeFolderRequest:
		return x.changeFolder(p)
	case *LockFlowRequest:
		return x.lockFlow()
	case *ImportFlowRequest:
		return x.importFlow(p)
	case *UpdateTriggerRequest:
		return x.updateTrigger(p)
	case *AddActionRequest:
		return x.addAction(p)
	case *UpdateActionRequest:
		return x.updateAction(p)
	case *DeleteActionRequest:
		return x.deleteAction(p)
	case *DuplicateActionRequest:
		return x.duplicateAction(p)
	case *MoveActionRequest:
		return x.moveAction(p)
	case *SetSkipActionRequest:
		return x.setSkipAction(p)
	case *AddBranchRequest:
		return x.addBranch(p)
	case *DeleteBranchRequest:
		return x.deleteBranch(p)
	case *DuplicateBranchRequest:
		return x.duplicateBranch(p)
	case *MoveBranchRequest:
		return x.moveBranch(p)
	}

	return invalid(x.op, "", "unexpected payload %T", payload)
}

func (x *edit) trigger() models.Trigger {
	return x.fv.Trigger
}

func (x *edit) validateStep(s models.Step) {
	s.Base().Valid = x.engine.stepValidator.ValidateStep(s)
}

// action resolves name to an action of the tree.
func (x *edit) action(name string) (models.Action, error) {
	s := flow.GetStep(x.trigger(), name)
	if s == nil {
		return nil, stepNotFound(x.op, name)
	}

	a, ok := s.(models.Action)
	if !ok {
		return nil, invalid(x.op, name, "step is the trigger")
	}

	return a, nil
}

func (x *edit) router(name string) (*models.RouterAction, error) {
	a, err := x.action(name)
	if err != nil {
		return nil, err
	}

	r, ok := a.(*models.RouterAction)
	if !ok {
		return nil, invalid(x.op, name, "step is a %s, not a router", a.Type())
	}

	return r, nil
}
