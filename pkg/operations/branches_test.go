package operations_test

import (
	"testing"

	"github.com/dukex/stepflow/pkg/flow"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/operations"
	"github.com/dukex/stepflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routerFlow() *models.FlowVersion {
	router := testutil.Router("R", testutil.ConditionBranch("First"), models.FallbackBranch())

	return testutil.FlowVersion(testutil.PieceTrigger("trigger", router))
}

func routerOf(t *testing.T, fv *models.FlowVersion, name string) *models.RouterAction {
	t.Helper()

	r, ok := flow.GetStep(fv.Trigger, name).(*models.RouterAction)
	require.True(t, ok, "%s is not a router", name)

	return r
}

func TestAddBranch_KeepsFallbackLast(t *testing.T) {
	out := apply(t, routerFlow(), operations.OperationAddBranch, &operations.AddBranchRequest{
		StepName:    "R",
		BranchIndex: 1,
		BranchName:  "New",
	})

	r := routerOf(t, out, "R")
	require.Len(t, r.Branches, 3)
	assert.Equal(t, "New", r.Branches[1].Branch.BranchName)
	assert.Equal(t, models.BranchTypeCondition, r.Branches[1].Branch.BranchType)
	assert.Equal(t, models.DefaultConditions(), r.Branches[1].Branch.Conditions)
	assert.Equal(t, models.BranchTypeFallback, r.Branches[2].Branch.BranchType)
	assertRoutersAligned(t, out.Trigger)
}

func TestAddBranch_Errors(t *testing.T) {
	fv := testutil.FlowVersion(testutil.PieceTrigger("trigger", testutil.Chain(
		testutil.Router("R", testutil.ConditionBranch("First"), models.FallbackBranch()),
		testutil.Code("code"),
	)))

	tests := []struct {
		name    string
		req     *operations.AddBranchRequest
		wantErr error
	}{
		{name: "after the fallback", req: &operations.AddBranchRequest{StepName: "R", BranchIndex: 2}, wantErr: operations.ErrFlowOperationInvalid},
		{name: "negative index", req: &operations.AddBranchRequest{StepName: "R", BranchIndex: -1}, wantErr: operations.ErrFlowOperationInvalid},
		{name: "not a router", req: &operations.AddBranchRequest{StepName: "code", BranchIndex: 0}, wantErr: operations.ErrFlowOperationInvalid},
		{name: "unknown step", req: &operations.AddBranchRequest{StepName: "nope", BranchIndex: 0}, wantErr: operations.ErrStepNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyErr(t, fv, operations.OperationAddBranch, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddBranchThenDeleteBranch_RoundTrip(t *testing.T) {
	fv := routerFlow()
	routerOf(t, fv, "R").Branches[0].Child = testutil.Code("child")

	added := apply(t, fv, operations.OperationAddBranch, &operations.AddBranchRequest{StepName: "R", BranchIndex: 0, BranchName: "Zero"})
	assert.Nil(t, routerOf(t, added, "R").Branches[0].Child)
	assert.Equal(t, "child", routerOf(t, added, "R").Branches[1].Child.Base().Name)

	removed := apply(t, added, operations.OperationDeleteBranch, &operations.DeleteBranchRequest{StepName: "R", BranchIndex: 0})

	assert.JSONEq(t, treeJSON(t, fv.Trigger), treeJSON(t, removed.Trigger))
}

func TestDeleteBranch(t *testing.T) {
	fv := routerFlow()
	routerOf(t, fv, "R").Branches[0].Child = testutil.Chain(testutil.Code("x"), testutil.Code("y"))

	out := apply(t, fv, operations.OperationDeleteBranch, &operations.DeleteBranchRequest{StepName: "R", BranchIndex: 0})
	r := routerOf(t, out, "R")
	require.Len(t, r.Branches, 1)
	assert.Nil(t, flow.GetStep(out.Trigger, "x"))
	assert.Nil(t, flow.GetStep(out.Trigger, "y"))

	err := applyErr(t, fv, operations.OperationDeleteBranch, &operations.DeleteBranchRequest{StepName: "R", BranchIndex: 1})
	assert.True(t, operations.IsInvalid(err), "fallback cannot be deleted")

	err = applyErr(t, fv, operations.OperationDeleteBranch, &operations.DeleteBranchRequest{StepName: "R", BranchIndex: 5})
	assert.True(t, operations.IsInvalid(err))
}

func TestMoveBranch(t *testing.T) {
	router := testutil.Router("R", testutil.ConditionBranch("A"), testutil.ConditionBranch("B"), testutil.ConditionBranch("C"), models.FallbackBranch())
	router.Branches[0].Child = testutil.Code("a")
	router.Branches[2].Child = testutil.Code("c")
	fv := testutil.FlowVersion(testutil.PieceTrigger("trigger", router))

	out := apply(t, fv, operations.OperationMoveBranch, &operations.MoveBranchRequest{StepName: "R", SourceIndex: 0, TargetIndex: 2})

	r := routerOf(t, out, "R")
	names := make([]string, len(r.Branches))
	for i, b := range r.Branches {
		names[i] = b.Branch.BranchName
	}

	assert.Equal(t, []string{"B", "C", "A", "Otherwise"}, names)
	assert.Equal(t, "c", r.Branches[1].Child.Base().Name)
	assert.Equal(t, "a", r.Branches[2].Child.Base().Name)
	assert.Nil(t, r.Branches[0].Child)

	noops := []*operations.MoveBranchRequest{
		{StepName: "R", SourceIndex: 0, TargetIndex: 3},
		{StepName: "R", SourceIndex: 3, TargetIndex: 0},
		{StepName: "R", SourceIndex: 1, TargetIndex: 1},
		{StepName: "R", SourceIndex: -1, TargetIndex: 1},
		{StepName: "R", SourceIndex: 0, TargetIndex: 9},
	}

	for _, req := range noops {
		unchanged := apply(t, fv, operations.OperationMoveBranch, req)
		assert.JSONEq(t, treeJSON(t, fv.Trigger), treeJSON(t, unchanged.Trigger))
	}
}

func TestDuplicateAction_RenamesAndRewritesReferences(t *testing.T) {
	a := testutil.Code("a")
	a.DisplayName = "Step A"
	a.Settings.Input = map[string]any{"value": "{{a.output}}", "from_trigger": "{{trigger.body}}"}
	a.Settings.SampleData = &models.SampleDataSettings{SampleDataFileID: "file-1"}
	fv := testutil.FlowVersion(testutil.PieceTrigger("trigger", testutil.Chain(a, testutil.Code("next"))))

	out := apply(t, fv, operations.OperationDuplicateAction, &operations.DuplicateActionRequest{StepName: "a"})

	assert.Equal(t, []string{"trigger", "a", "step_1", "next"}, flow.StepNames(out.Trigger))

	clone := flow.GetStep(out.Trigger, "step_1").(*models.CodeAction)
	assert.Equal(t, "Step A Copy", clone.DisplayName)
	assert.Equal(t, "{{step_1.output}}", clone.Settings.Input["value"])
	assert.Equal(t, "{{trigger.body}}", clone.Settings.Input["from_trigger"])
	assert.Nil(t, clone.Settings.SampleData)

	original := flow.GetStep(out.Trigger, "a").(*models.CodeAction)
	assert.Equal(t, "{{a.output}}", original.Settings.Input["value"])
	assert.Equal(t, "Step A", original.DisplayName)
	assert.NotNil(t, original.Settings.SampleData)
}

func TestDuplicateAction_Loop(t *testing.T) {
	inner := testutil.Code("inner")
	inner.Settings.Input = map[string]any{"item": "{{loop.item}}", "prev": "{{outside.value}}"}
	loop := testutil.Loop("loop", "{{outside.list}}", inner)
	fv := testutil.FlowVersion(testutil.PieceTrigger("trigger", testutil.Chain(testutil.Code("outside"), loop)))

	out := apply(t, fv, operations.OperationDuplicateAction, &operations.DuplicateActionRequest{StepName: "loop"})

	assert.Equal(t, []string{"trigger", "outside", "loop", "inner", "step_1", "step_2"}, flow.StepNames(out.Trigger))

	copied := flow.GetStep(out.Trigger, "step_1").(*models.LoopOnItemsAction)
	assert.Equal(t, "{{outside.list}}", copied.Settings.Items)

	copiedInner := copied.FirstLoopAction.(*models.CodeAction)
	assert.Equal(t, "step_2", copiedInner.Name)
	assert.Equal(t, "{{step_1.item}}", copiedInner.Settings.Input["item"])
	assert.Equal(t, "{{outside.value}}", copiedInner.Settings.Input["prev"])
	assertUniqueNames(t, out.Trigger)
}

func TestDuplicateAction_Errors(t *testing.T) {
	fv := testutil.FlowVersion(testutil.PieceTrigger("trigger", nil))

	err := applyErr(t, fv, operations.OperationDuplicateAction, &operations.DuplicateActionRequest{StepName: "trigger"})
	assert.True(t, operations.IsInvalid(err))

	err = applyErr(t, fv, operations.OperationDuplicateAction, &operations.DuplicateActionRequest{StepName: "nope"})
	assert.True(t, operations.IsStepNotFound(err))
}

func TestDuplicateBranch(t *testing.T) {
	fv := routerFlow()
	child := testutil.Code("child")
	child.Settings.Input = map[string]any{"v": "{{child.output}} {{R.branch}}"}
	routerOf(t, fv, "R").Branches[0].Child = testutil.Chain(child, testutil.Code("after"))

	out := apply(t, fv, operations.OperationDuplicateBranch, &operations.DuplicateBranchRequest{StepName: "R", BranchIndex: 0})

	r := routerOf(t, out, "R")
	require.Len(t, r.Branches, 3)
	assert.Equal(t, "First Copy", r.Branches[1].Branch.BranchName)
	assert.Equal(t, models.BranchTypeFallback, r.Branches[2].Branch.BranchType)
	assert.Equal(t, []string{"step_1", "step_2"}, flow.StepNames(r.Branches[1].Child))

	copied := r.Branches[1].Child.(*models.CodeAction)
	assert.Equal(t, "{{step_1.output}} {{R.branch}}", copied.Settings.Input["v"])
	assert.Equal(t, "child Copy", copied.DisplayName)

	err := applyErr(t, fv, operations.OperationDuplicateBranch, &operations.DuplicateBranchRequest{StepName: "R", BranchIndex: 1})
	assert.True(t, operations.IsInvalid(err), "fallback cannot be duplicated")
}

func TestImportFlow(t *testing.T) {
	existing := testutil.FlowVersion(testutil.PieceTrigger("trigger", testutil.Chain(testutil.Code("old"), testutil.Code("older"))))

	data := []byte(`{
		"name": "trigger", "displayName": "Schedule", "type": "PIECE_TRIGGER", "valid": true,
		"settings": {"pieceName": "schedule", "pieceVersion": "0.1.0", "triggerName": "every_hour", "input": {}},
		"nextAction": {
			"name": "loop", "displayName": "Loop", "type": "LOOP_ON_ITEMS", "valid": true,
			"settings": {"items": "{{trigger.items}}"},
			"firstLoopAction": {"name": "body", "displayName": "Body", "type": "CODE", "valid": true, "settings": {"sourceCode": {"code": "", "packageJson": "{}"}, "input": {}}},
			"nextAction": {
				"name": "router", "displayName": "Router", "type": "ROUTER", "valid": true,
				"settings": {"executionType": "EXECUTE_FIRST_MATCH", "branches": [
					{"branchType": "CONDITION", "branchName": "A", "conditions": [[{"firstValue": "a", "secondValue": "b", "operator": "TEXT_CONTAINS"}]]},
					{"branchType": "FALLBACK", "branchName": "Otherwise"}
				]},
				"children": [null, {"name": "fallback_step", "displayName": "Fallback", "type": "CODE", "valid": true, "settings": {"sourceCode": {"code": "", "packageJson": "{}"}, "input": {"auth": "{{connections['github']}}"}}}]
			}
		}
	}`)

	out := apply(t, existing, operations.OperationImportFlow, &operations.ImportFlowRequest{
		DisplayName: "Imported",
		Trigger:     data,
	})

	assert.Equal(t, "Imported", out.DisplayName)
	assert.Equal(t, models.StepTypePieceTrigger, out.Trigger.Type())
	assert.Equal(t, []string{"trigger", "loop", "body", "router", "fallback_step"}, flow.StepNames(out.Trigger))
	assert.Nil(t, flow.GetStep(out.Trigger, "old"))
	assert.Equal(t, []string{"github"}, out.ConnectionIDs)

	r := routerOf(t, out, "router")
	assert.Nil(t, r.Branches[0].Child)
	assert.Equal(t, "fallback_step", r.Branches[1].Child.Base().Name)
	assertRoutersAligned(t, out.Trigger)
}

func TestImportFlow_RejectsDuplicateNames(t *testing.T) {
	existing := testutil.FlowVersion(testutil.PieceTrigger("trigger", nil))

	data := []byte(`{
		"name": "trigger", "type": "EMPTY", "settings": {},
		"nextAction": {"name": "a", "type": "CODE", "settings": {},
			"nextAction": {"name": "a", "type": "CODE", "settings": {}}}
	}`)

	err := applyErr(t, existing, operations.OperationImportFlow, &operations.ImportFlowRequest{DisplayName: "x", Trigger: data})
	assert.True(t, operations.IsInvalid(err))

	err = applyErr(t, existing, operations.OperationImportFlow, &operations.ImportFlowRequest{DisplayName: "x", Trigger: []byte(`{"name": "a", "type": "CODE"}`)})
	assert.True(t, operations.IsInvalid(err))
}
