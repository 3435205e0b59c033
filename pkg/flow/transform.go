// Package flow provides traversal and rewrite primitives over step trees.
package flow

import "github.com/dukex/stepflow/pkg/models"

// TransformFunc returns the replacement of a step. It receives a detached
// copy of the node whose links still point at the original descendants.
type TransformFunc func(step models.Step) models.Step

// TransformTrigger rewrites every step of the tree rooted at t, pre-order.
// The input tree is left untouched.
func TransformTrigger(t models.Trigger, f TransformFunc) models.Trigger {
	out, _ := transform(t, f).(models.Trigger)

	return out
}

// TransformAction rewrites every step of the tree rooted at a, pre-order.
func TransformAction(a models.Action, f TransformFunc) models.Action {
	out, _ := transform(a, f).(models.Action)

	return out
}

func transform(s models.Step, f TransformFunc) models.Step {
	if models.IsNil(s) {
		return nil
	}

	updated := f(models.ShallowCopy(s))
	if models.IsNil(updated) {
		return nil
	}

	switch v := updated.(type) {
	case *models.LoopOnItemsAction:
		v.FirstLoopAction = TransformAction(v.FirstLoopAction, f)
	case *models.RouterAction:
		branches := make([]models.RouterBranch, len(v.Branches))
		for i, b := range v.Branches {
			branches[i] = models.RouterBranch{Branch: b.Branch, Child: TransformAction(b.Child, f)}
		}

		v.Branches = branches
	}

	base := updated.Base()
	base.NextAction = TransformAction(base.NextAction, f)

	return updated
}

// Walk visits s and its descendants in the order TransformTrigger does:
// the step, its loop body or branch children, then its next action.
// Returning false from fn stops the walk.
func Walk(s models.Step, fn func(models.Step) bool) bool {
	if models.IsNil(s) {
		return true
	}

	if !fn(s) {
		return false
	}

	for _, child := range models.Children(s) {
		if !Walk(child, fn) {
			return false
		}
	}

	return Walk(s.Base().NextAction, fn)
}

// GetAllSteps flattens the tree rooted at s.
func GetAllSteps(s models.Step) []models.Step {
	var steps []models.Step

	Walk(s, func(step models.Step) bool {
		steps = append(steps, step)

		return true
	})

	return steps
}

// GetAllChildSteps returns the descendants of s inside its loop body or
// router branches. The next action chain of s is excluded.
func GetAllChildSteps(s models.Step) []models.Step {
	var steps []models.Step

	for _, child := range models.Children(s) {
		steps = append(steps, GetAllSteps(child)...)
	}

	return steps
}

// NextChain returns the top-level chain that follows t.
func NextChain(t models.Step) []models.Action {
	var chain []models.Action

	for a := t.Base().NextAction; !models.IsNil(a); a = a.Base().NextAction {
		chain = append(chain, a)
	}

	return chain
}

// StepNames returns the names of every step in the tree rooted at s.
func StepNames(s models.Step) []string {
	steps := GetAllSteps(s)
	names := make([]string, len(steps))

	for i, step := range steps {
		names[i] = step.Base().Name
	}

	return names
}
