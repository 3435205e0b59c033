package operations

import (
	"github.com/dukex/stepflow/pkg/flow"
	"github.com/dukex/stepflow/pkg/models"
)

func (x *edit) addAction(req *AddActionRequest) error {
	if models.IsNil(req.Action.Action) {
		return invalid(x.op, req.ParentStep, "action is required")
	}

	node := detach(req.Action.Action)
	x.validateStep(node)

	return x.insert(req.ParentStep, req.StepLocationRelativeToParent, req.BranchIndex, node)
}

// insert places node in the slot described by parent, location and branch
// index. The previous occupant of the slot becomes node's next action.
func (x *edit) insert(parentName string, location models.StepLocation, branchIndex *int, node models.Action) error {
	parent := flow.GetStep(x.trigger(), parentName)
	if parent == nil {
		return stepNotFound(x.op, parentName)
	}

	if err := x.checkNewNames(node); err != nil {
		return err
	}

	if err := x.checkRouterShape(node); err != nil {
		return err
	}

	slot := flow.Parent{Step: parent, Location: location}

	switch location {
	case models.StepLocationAfter, "":
		slot.Location = models.StepLocationAfter
	case models.StepLocationInsideLoop:
		if _, ok := parent.(*models.LoopOnItemsAction); !ok {
			return invalid(x.op, parentName, "cannot insert inside a %s step", parent.Type())
		}
	case models.StepLocationInsideBranch:
		router, ok := parent.(*models.RouterAction)
		if !ok {
			return invalid(x.op, parentName, "cannot insert inside a branch of a %s step", parent.Type())
		}

		if branchIndex == nil || *branchIndex < 0 || *branchIndex >= len(router.Branches) {
			return invalid(x.op, parentName, "branch index out of range for %d branches", len(router.Branches))
		}

		slot.BranchIndex = *branchIndex
	default:
		return invalid(x.op, parentName, "unknown location %q", location)
	}

	node.Base().NextAction = slot.Get()
	slot.Set(node)

	return nil
}

func (x *edit) checkNewNames(node models.Action) error {
	seen := map[string]struct{}{}

	for _, name := range flow.StepNames(node) {
		if name == "" {
			return invalid(x.op, "", "step name is required")
		}

		if _, dup := seen[name]; dup || flow.Contains(x.trigger(), name) {
			return invalid(x.op, name, "step name already exists")
		}

		seen[name] = struct{}{}
	}

	return nil
}

// checkRouterShape rejects routers in the subtree of node with more than one
// fallback branch or a fallback that is not last.
func (x *edit) checkRouterShape(node models.Step) error {
	for _, s := range flow.GetAllSteps(node) {
		router, ok := s.(*models.RouterAction)
		if !ok {
			continue
		}

		fallbacks := 0

		for i, b := range router.Branches {
			if b.Branch.BranchType != models.BranchTypeFallback {
				continue
			}

			fallbacks++
			if fallbacks > 1 {
				return invalid(x.op, router.Name, "router has more than one fallback branch")
			}

			if i != len(router.Branches)-1 {
				return invalid(x.op, router.Name, "fallback branch %d must be the last branch", i)
			}
		}
	}

	return nil
}

// detach returns a copy of a without any descendants. Router branches are
// kept with empty children.
func detach(a models.Action) models.Action {
	c := models.CloneAction(a)
	c.Base().NextAction = nil

	switch v := c.(type) {
	case *models.LoopOnItemsAction:
		v.FirstLoopAction = nil
	case *models.RouterAction:
		for i := range v.Branches {
			v.Branches[i].Child = nil
		}
	}

	return c
}

func (x *edit) deleteAction(req *DeleteActionRequest) error {
	for _, name := range req.Names {
		if name == x.trigger().Base().Name {
			return invalid(x.op, name, "the trigger cannot be deleted")
		}

		if !flow.Contains(x.trigger(), name) {
			return stepNotFound(x.op, name)
		}
	}

	for _, name := range req.Names {
		// already gone with an ancestor deleted earlier in this request
		parent, ok := flow.FindParent(x.trigger(), name)
		if !ok {
			continue
		}

		target := parent.Get()
		parent.Set(target.Base().NextAction)
	}

	return nil
}

func (x *edit) updateAction(req *UpdateActionRequest) error {
	if models.IsNil(req.Action) {
		return invalid(x.op, "", "action is required")
	}

	name := req.Action.Base().Name
	if name == x.trigger().Base().Name {
		return invalid(x.op, name, "use %s to update the trigger", OperationUpdateTrigger)
	}

	parent, ok := flow.FindParent(x.trigger(), name)
	if !ok {
		return stepNotFound(x.op, name)
	}

	old := parent.Get()
	node := detach(req.Action)

	switch n := node.(type) {
	case *models.LoopOnItemsAction:
		if oldLoop, ok := old.(*models.LoopOnItemsAction); ok {
			n.FirstLoopAction = oldLoop.FirstLoopAction
		}
	case *models.RouterAction:
		if oldRouter, ok := old.(*models.RouterAction); ok {
			if err := x.carryBranches(oldRouter, n); err != nil {
				return err
			}
		}
	}

	if node.Type() != old.Type() && len(models.Children(old)) > 0 {
		return invalid(x.op, name, "changing %s to %s would drop its child steps", old.Type(), node.Type())
	}

	if err := x.checkRouterShape(node); err != nil {
		return err
	}

	node.Base().NextAction = old.Base().NextAction
	x.validateStep(node)
	parent.Set(node)

	return nil
}

// carryBranches keeps the children of old on the updated router. The
// branch list may be omitted but must otherwise keep its length.
func (x *edit) carryBranches(old, updated *models.RouterAction) error {
	if len(updated.Branches) == 0 {
		updated.Branches = append([]models.RouterBranch(nil), old.Branches...)

		return nil
	}

	if len(updated.Branches) != len(old.Branches) {
		return invalid(x.op, old.Name, "router has %d branches, update has %d; use %s or %s",
			len(old.Branches), len(updated.Branches), OperationAddBranch, OperationDeleteBranch)
	}

	for i := range updated.Branches {
		updated.Branches[i].Child = old.Branches[i].Child
	}

	return nil
}

func (x *edit) updateTrigger(req *UpdateTriggerRequest) error {
	if models.IsNil(req.Trigger) {
		return invalid(x.op, "", "trigger is required")
	}

	node := models.CloneTrigger(req.Trigger)
	node.Base().NextAction = x.trigger().Base().NextAction

	name := node.Base().Name
	if name == "" {
		return invalid(x.op, "", "step name is required")
	}

	if name != x.trigger().Base().Name && flow.Contains(x.trigger(), name) {
		return invalid(x.op, name, "step name already exists")
	}

	x.validateStep(node)
	x.fv.Trigger = node

	return nil
}

// moveAction detaches the named action with its loop body or branches and
// inserts it at the new location. Its former next action takes its place.
func (x *edit) moveAction(req *MoveActionRequest) error {
	target, err := x.action(req.Name)
	if err != nil {
		return err
	}

	if !flow.Contains(x.trigger(), req.NewParentStep) {
		return stepNotFound(x.op, req.NewParentStep)
	}

	if req.NewParentStep == req.Name || flow.IsChildOf(target, req.NewParentStep) {
		return invalid(x.op, req.Name, "cannot move a step inside itself")
	}

	parent, _ := flow.FindParent(x.trigger(), req.Name)
	parent.Set(target.Base().NextAction)
	target.Base().NextAction = nil

	return x.insert(req.NewParentStep, req.StepLocationRelativeToNewParent, req.BranchIndex, target)
}

func (x *edit) setSkipAction(req *SetSkipActionRequest) error {
	actions := make([]models.Action, 0, len(req.Names))

	for _, name := range req.Names {
		a, err := x.action(name)
		if err != nil {
			return err
		}

		actions = append(actions, a)
	}

	for _, a := range actions {
		a.SetSkipped(req.Skip)
	}

	return nil
}
