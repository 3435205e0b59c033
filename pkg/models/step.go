// Package models defines the flow program model: a trigger owning a tree of actions.
package models

// StepType identifies the concrete variant of a step.
type StepType string

const (
	StepTypeEmpty        StepType = "EMPTY"         // Placeholder trigger
	StepTypePieceTrigger StepType = "PIECE_TRIGGER" // Trigger provided by a piece
	StepTypeCode         StepType = "CODE"          // Inline source code action
	StepTypePiece        StepType = "PIECE"         // Action provided by a piece
	StepTypeLoopOnItems  StepType = "LOOP_ON_ITEMS" // Iterates a body chain over items
	StepTypeRouter       StepType = "ROUTER"        // Conditional branching
)

// IsTrigger reports whether the type names a trigger variant.
func (t StepType) IsTrigger() bool {
	return t == StepTypeEmpty || t == StepTypePieceTrigger
}

// IsAction reports whether the type names an action variant.
func (t StepType) IsAction() bool {
	switch t {
	case StepTypeCode, StepTypePiece, StepTypeLoopOnItems, StepTypeRouter:
		return true
	}

	return false
}

// StepLocation is the position of a step relative to its parent.
type StepLocation string

const (
	StepLocationAfter        StepLocation = "AFTER"
	StepLocationInsideLoop   StepLocation = "INSIDE_LOOP"
	StepLocationInsideBranch StepLocation = "INSIDE_BRANCH"
)

// StepBase holds the fields common to every step.
type StepBase struct {
	Name        string
	DisplayName string
	Valid       bool
	NextAction  Action
}

func (b *StepBase) Base() *StepBase {
	return b
}

// Step is either a Trigger or an Action.
type Step interface {
	Base() *StepBase
	Type() StepType
}

// Trigger is the entry point of a flow.
type Trigger interface {
	Step
	isTrigger()
}

// Action is any step reachable from a trigger.
type Action interface {
	Step
	IsSkipped() bool
	SetSkipped(skip bool)
	isAction()
}

// ActionBase holds the fields common to every action.
type ActionBase struct {
	StepBase

	Skip bool
}

func (a *ActionBase) IsSkipped() bool {
	return a.Skip
}

func (a *ActionBase) SetSkipped(skip bool) {
	a.Skip = skip
}

// EmptyTrigger is the trigger of a freshly created flow.
type EmptyTrigger struct {
	StepBase
}

func (*EmptyTrigger) Type() StepType { return StepTypeEmpty }
func (*EmptyTrigger) isTrigger()     {}

// PieceTrigger starts a flow from a piece event.
type PieceTrigger struct {
	StepBase

	Settings PieceTriggerSettings
}

func (*PieceTrigger) Type() StepType { return StepTypePieceTrigger }
func (*PieceTrigger) isTrigger()     {}

// CodeAction runs inline source code.
type CodeAction struct {
	ActionBase

	Settings CodeSettings
}

func (*CodeAction) Type() StepType { return StepTypeCode }
func (*CodeAction) isAction()      {}

// PieceAction runs an action provided by a piece.
type PieceAction struct {
	ActionBase

	Settings PieceActionSettings
}

func (*PieceAction) Type() StepType { return StepTypePiece }
func (*PieceAction) isAction()      {}

// LoopOnItemsAction runs the chain headed by FirstLoopAction once per item.
type LoopOnItemsAction struct {
	ActionBase

	Settings        LoopOnItemsSettings
	FirstLoopAction Action
}

func (*LoopOnItemsAction) Type() StepType { return StepTypeLoopOnItems }
func (*LoopOnItemsAction) isAction()      {}

// RouterBranch pairs a branch with the head of the chain it guards.
type RouterBranch struct {
	Branch Branch
	Child  Action
}

// RouterAction evaluates its branches and runs the matching children.
type RouterAction struct {
	ActionBase

	Settings RouterSettings
	Branches []RouterBranch
}

func (*RouterAction) Type() StepType { return StepTypeRouter }
func (*RouterAction) isAction()      {}

// FallbackIndex returns the index of the fallback branch, or -1.
func (r *RouterAction) FallbackIndex() int {
	for i, b := range r.Branches {
		if b.Branch.BranchType == BranchTypeFallback {
			return i
		}
	}

	return -1
}

// ConditionCount is the number of branches preceding the fallback.
func (r *RouterAction) ConditionCount() int {
	if i := r.FallbackIndex(); i >= 0 {
		return i
	}

	return len(r.Branches)
}

// Children returns the non-nil child action of every branch, in branch order.
func Children(s Step) []Action {
	switch v := s.(type) {
	case *LoopOnItemsAction:
		if v.FirstLoopAction != nil {
			return []Action{v.FirstLoopAction}
		}
	case *RouterAction:
		children := make([]Action, 0, len(v.Branches))
		for _, b := range v.Branches {
			if b.Child != nil {
				children = append(children, b.Child)
			}
		}

		return children
	}

	return nil
}

// IsNil reports whether s is nil, including a typed nil pointer.
func IsNil(s Step) bool {
	if s == nil {
		return true
	}

	switch v := s.(type) {
	case *EmptyTrigger:
		return v == nil
	case *PieceTrigger:
		return v == nil
	case *CodeAction:
		return v == nil
	case *PieceAction:
		return v == nil
	case *LoopOnItemsAction:
		return v == nil
	case *RouterAction:
		return v == nil
	}

	return false
}
