package flow

import (
	"github.com/dukex/stepflow/pkg/models"
)

// GetStep returns the step named name in the tree rooted at root, or nil.
func GetStep(root models.Step, name string) models.Step {
	var found models.Step

	Walk(root, func(s models.Step) bool {
		if s.Base().Name == name {
			found = s

			return false
		}

		return true
	})

	return found
}

// GetAction returns the action named name, or nil when the name is absent
// or belongs to a trigger.
func GetAction(root models.Step, name string) models.Action {
	a, _ := GetStep(root, name).(models.Action)

	return a
}

// Contains reports whether a step named name exists in the tree rooted at root.
func Contains(root models.Step, name string) bool {
	return GetStep(root, name) != nil
}

// Parent locates the slot that holds a step.
type Parent struct {
	Step        models.Step
	Location    models.StepLocation
	BranchIndex int
}

// Get returns the action currently held by the slot.
func (p Parent) Get() models.Action {
	switch p.Location {
	case models.StepLocationInsideLoop:
		if loop, ok := p.Step.(*models.LoopOnItemsAction); ok {
			return loop.FirstLoopAction
		}
	case models.StepLocationInsideBranch:
		if router, ok := p.Step.(*models.RouterAction); ok && p.BranchIndex >= 0 && p.BranchIndex < len(router.Branches) {
			return router.Branches[p.BranchIndex].Child
		}
	default:
		return p.Step.Base().NextAction
	}

	return nil
}

// Set replaces the action held by the slot. The parent is mutated in place.
func (p Parent) Set(a models.Action) {
	switch p.Location {
	case models.StepLocationInsideLoop:
		if loop, ok := p.Step.(*models.LoopOnItemsAction); ok {
			loop.FirstLoopAction = a
		}
	case models.StepLocationInsideBranch:
		if router, ok := p.Step.(*models.RouterAction); ok && p.BranchIndex >= 0 && p.BranchIndex < len(router.Branches) {
			router.Branches[p.BranchIndex].Child = a
		}
	default:
		p.Step.Base().NextAction = a
	}
}

// FindParent returns the slot holding the action named name.
func FindParent(root models.Step, name string) (Parent, bool) {
	var (
		parent Parent
		found  bool
	)

	is := func(a models.Action) bool {
		return !models.IsNil(a) && a.Base().Name == name
	}

	Walk(root, func(s models.Step) bool {
		switch v := s.(type) {
		case *models.LoopOnItemsAction:
			if is(v.FirstLoopAction) {
				parent, found = Parent{Step: s, Location: models.StepLocationInsideLoop}, true
			}
		case *models.RouterAction:
			for i, b := range v.Branches {
				if is(b.Child) {
					parent, found = Parent{Step: s, Location: models.StepLocationInsideBranch, BranchIndex: i}, true
				}
			}
		}

		if is(s.Base().NextAction) {
			parent, found = Parent{Step: s, Location: models.StepLocationAfter}, true
		}

		return !found
	})

	return parent, found
}

// StepWithIndex is a step annotated with its position in GetAllSteps order.
type StepWithIndex struct {
	Step     models.Step
	DFSIndex int
}

// FindPathToStep returns, root first, every step whose subtree (including
// its next action chain) contains the target. The target itself is
// excluded. An unknown target yields an empty path.
func FindPathToStep(trigger models.Trigger, target string) []StepWithIndex {
	var path []StepWithIndex

	for i, s := range GetAllSteps(trigger) {
		if s.Base().Name == target {
			continue
		}

		if Contains(s, target) {
			path = append(path, StepWithIndex{Step: s, DFSIndex: i})
		}
	}

	return path
}

// IsChildOf reports whether child lives inside the loop body or router
// branches of parent. Steps that merely follow parent are not children.
func IsChildOf(parent models.Step, child string) bool {
	for _, s := range GetAllChildSteps(parent) {
		if s.Base().Name == child {
			return true
		}
	}

	return false
}
