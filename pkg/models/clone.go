package models

import (
	"github.com/mohae/deepcopy"
)

// Clone returns a deep copy of the flow version and its step tree.
func (f *FlowVersion) Clone() *FlowVersion {
	if f == nil {
		return nil
	}

	c := *f
	c.Trigger = CloneTrigger(f.Trigger)
	c.ConnectionIDs = cloneStrings(f.ConnectionIDs)
	c.AgentIDs = cloneStrings(f.AgentIDs)

	return &c
}

// CloneTrigger deep copies a trigger and its descendants.
func CloneTrigger(t Trigger) Trigger {
	if IsNil(t) {
		return nil
	}

	c, _ := CloneStep(t).(Trigger)

	return c
}

// CloneAction deep copies an action and its descendants.
func CloneAction(a Action) Action {
	if IsNil(a) {
		return nil
	}

	c, _ := CloneStep(a).(Action)

	return c
}

// CloneStep deep copies a step and its descendants.
func CloneStep(s Step) Step {
	if IsNil(s) {
		return nil
	}

	c := ShallowCopy(s)
	base := c.Base()
	base.NextAction = CloneAction(base.NextAction)

	switch v := c.(type) {
	case *PieceTrigger:
		v.Settings.Input = cloneInput(v.Settings.Input)
		v.Settings.PropertySettings = clonePropertySettings(v.Settings.PropertySettings)
		v.Settings.SampleData = cloneSampleData(v.Settings.SampleData)
	case *CodeAction:
		v.Settings.Input = cloneInput(v.Settings.Input)
		v.Settings.ErrorHandlingOptions = cloneErrorHandling(v.Settings.ErrorHandlingOptions)
		v.Settings.SampleData = cloneSampleData(v.Settings.SampleData)
	case *PieceAction:
		v.Settings.Input = cloneInput(v.Settings.Input)
		v.Settings.PropertySettings = clonePropertySettings(v.Settings.PropertySettings)
		v.Settings.ErrorHandlingOptions = cloneErrorHandling(v.Settings.ErrorHandlingOptions)
		v.Settings.SampleData = cloneSampleData(v.Settings.SampleData)
	case *LoopOnItemsAction:
		v.Settings.SampleData = cloneSampleData(v.Settings.SampleData)
		v.FirstLoopAction = CloneAction(v.FirstLoopAction)
	case *RouterAction:
		v.Settings.SampleData = cloneSampleData(v.Settings.SampleData)
		for i := range v.Branches {
			v.Branches[i].Branch = CloneBranch(v.Branches[i].Branch)
			v.Branches[i].Child = CloneAction(v.Branches[i].Child)
		}
	}

	return c
}

// ShallowCopy copies the step node only. Descendants and settings maps are
// shared with s, except the router branch slice which is copied.
func ShallowCopy(s Step) Step {
	switch v := s.(type) {
	case *EmptyTrigger:
		c := *v

		return &c
	case *PieceTrigger:
		c := *v

		return &c
	case *CodeAction:
		c := *v

		return &c
	case *PieceAction:
		c := *v

		return &c
	case *LoopOnItemsAction:
		c := *v

		return &c
	case *RouterAction:
		c := *v
		c.Branches = append([]RouterBranch(nil), v.Branches...)

		return &c
	}

	return nil
}

// CloneBranch deep copies a branch and its conditions.
func CloneBranch(b Branch) Branch {
	if b.Conditions == nil {
		return b
	}

	groups := make([][]BranchCondition, len(b.Conditions))
	for i, g := range b.Conditions {
		groups[i] = append([]BranchCondition(nil), g...)
	}

	b.Conditions = groups

	return b
}

func cloneInput(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out, _ := deepcopy.Copy(in).(map[string]any)

	return out
}

func clonePropertySettings(in map[string]PropertySettings) map[string]PropertySettings {
	if in == nil {
		return nil
	}

	out := make(map[string]PropertySettings, len(in))
	for k, v := range in {
		v.Schema = cloneInput(v.Schema)
		out[k] = v
	}

	return out
}

func cloneSampleData(in *SampleDataSettings) *SampleDataSettings {
	if in == nil {
		return nil
	}

	c := *in

	return &c
}

func cloneErrorHandling(in *ErrorHandlingOptions) *ErrorHandlingOptions {
	if in == nil {
		return nil
	}

	c := ErrorHandlingOptions{}
	if in.ContinueOnFailure != nil {
		v := *in.ContinueOnFailure
		c.ContinueOnFailure = &v
	}

	if in.RetryOnFailure != nil {
		v := *in.RetryOnFailure
		c.RetryOnFailure = &v
	}

	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}

	return append([]string(nil), in...)
}
