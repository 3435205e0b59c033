package flow_test

import (
	"testing"

	"github.com/dukex/stepflow/pkg/flow"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trigger -> loop(body: a -> b) -> router([x] / [y -> z]) -> tail
func sampleTree() models.Trigger {
	loop := testutil.Loop("loop", "{{trigger.items}}", testutil.Chain(testutil.Code("a"), testutil.Code("b")))
	router := testutil.Router("router", testutil.ConditionBranch("first"), models.FallbackBranch())
	router.Branches[0].Child = testutil.Code("x")
	router.Branches[1].Child = testutil.Chain(testutil.Code("y"), testutil.Code("z"))

	return testutil.PieceTrigger("trigger", testutil.Chain(loop, router, testutil.Code("tail")))
}

func TestGetAllSteps_Order(t *testing.T) {
	names := flow.StepNames(sampleTree())

	assert.Equal(t, []string{"trigger", "loop", "a", "b", "router", "x", "y", "z", "tail"}, names)
}

func TestTransformTrigger_VisitsOnceAndCopies(t *testing.T) {
	original := sampleTree()

	var visited []string

	out := flow.TransformTrigger(original, func(s models.Step) models.Step {
		visited = append(visited, s.Base().Name)
		s.Base().DisplayName = "renamed " + s.Base().Name

		return s
	})

	assert.Equal(t, flow.StepNames(original), visited)

	for _, s := range flow.GetAllSteps(out) {
		assert.Equal(t, "renamed "+s.Base().Name, s.Base().DisplayName)
	}

	for _, s := range flow.GetAllSteps(original) {
		assert.NotContains(t, s.Base().DisplayName, "renamed")
	}
}

func TestTransformTrigger_ReplacesVariant(t *testing.T) {
	out := flow.TransformTrigger(sampleTree(), func(s models.Step) models.Step {
		if s.Base().Name != "x" {
			return s
		}

		loop := testutil.Loop("x", "{{[]}}", nil)
		loop.NextAction = s.Base().NextAction

		return loop
	})

	router := flow.GetStep(out, "router").(*models.RouterAction)
	_, isLoop := router.Branches[0].Child.(*models.LoopOnItemsAction)
	assert.True(t, isLoop)
	assert.Len(t, router.Branches, 2)
	assert.Equal(t, "y", router.Branches[1].Child.Base().Name)
}

func TestFindParent(t *testing.T) {
	tree := sampleTree()

	tests := []struct {
		name         string
		step         string
		wantParent   string
		wantLocation models.StepLocation
		wantIndex    int
	}{
		{name: "after trigger", step: "loop", wantParent: "trigger", wantLocation: models.StepLocationAfter},
		{name: "loop head", step: "a", wantParent: "loop", wantLocation: models.StepLocationInsideLoop},
		{name: "inside loop chain", step: "b", wantParent: "a", wantLocation: models.StepLocationAfter},
		{name: "fallback branch head", step: "y", wantParent: "router", wantLocation: models.StepLocationInsideBranch, wantIndex: 1},
		{name: "after router", step: "tail", wantParent: "router", wantLocation: models.StepLocationAfter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, ok := flow.FindParent(tree, tt.step)
			require.True(t, ok)
			assert.Equal(t, tt.wantParent, parent.Step.Base().Name)
			assert.Equal(t, tt.wantLocation, parent.Location)
			assert.Equal(t, tt.wantIndex, parent.BranchIndex)
			assert.Equal(t, tt.step, parent.Get().Base().Name)
		})
	}

	_, ok := flow.FindParent(tree, "trigger")
	assert.False(t, ok)
}

func TestFindPathToStep(t *testing.T) {
	path := flow.FindPathToStep(sampleTree(), "b")

	require.Len(t, path, 3)
	assert.Equal(t, "trigger", path[0].Step.Base().Name)
	assert.Equal(t, 0, path[0].DFSIndex)
	assert.Equal(t, "loop", path[1].Step.Base().Name)
	assert.Equal(t, 1, path[1].DFSIndex)
	assert.Equal(t, "a", path[2].Step.Base().Name)
	assert.Equal(t, 2, path[2].DFSIndex)

	assert.Empty(t, flow.FindPathToStep(sampleTree(), "missing"))
	assert.Empty(t, flow.FindPathToStep(sampleTree(), "trigger"))
}

func TestIsChildOf(t *testing.T) {
	tree := sampleTree()
	loop := flow.GetStep(tree, "loop")
	router := flow.GetStep(tree, "router")

	assert.True(t, flow.IsChildOf(loop, "a"))
	assert.True(t, flow.IsChildOf(loop, "b"))
	assert.False(t, flow.IsChildOf(loop, "loop"))
	assert.False(t, flow.IsChildOf(loop, "router"))
	assert.True(t, flow.IsChildOf(router, "z"))
	assert.False(t, flow.IsChildOf(router, "tail"))
	assert.False(t, flow.IsChildOf(flow.GetStep(tree, "tail"), "x"))
}

func TestFindUnusedName(t *testing.T) {
	assert.Equal(t, "step_1", flow.FindUnusedName(nil))
	assert.Equal(t, "step_2", flow.FindUnusedName([]string{"step_1", "trigger"}))
	assert.Equal(t, "step_1", flow.FindUnusedName([]string{"step_2"}))

	alloc := flow.NewNameAllocator([]string{"step_1", "step_3"})
	assert.Equal(t, "step_2", alloc.Next())
	assert.Equal(t, "step_4", alloc.Next())
	assert.Equal(t, "step_5", alloc.Next())
}

func TestRenameMap_IsBijective(t *testing.T) {
	tree := sampleTree()
	loop := flow.GetStep(tree, "loop").(*models.LoopOnItemsAction)
	detached := models.CloneAction(loop)
	detached.Base().NextAction = nil

	renames := flow.RenameMap(detached, flow.NewNameAllocator(flow.StepNames(tree)))

	assert.Equal(t, map[string]string{"loop": "step_1", "a": "step_2", "b": "step_3"}, renames)
}

func TestExtractConnectionAndAgentIDs(t *testing.T) {
	first := testutil.Piece("first", "slack", "send", map[string]any{
		"auth": "{{connections['slack-main']}}",
		"text": "{{connections['gmail', 'slack-main']}} and {{agents['helper']}}",
	})
	second := testutil.Code("second")
	second.Settings.Input = map[string]any{
		"nested": []any{map[string]any{"x": "{{connections[ 'notion' ]}}"}},
		"agent":  "{{agents['helper', 'writer']}}",
	}

	tree := testutil.PieceTrigger("trigger", testutil.Chain(first, second))

	assert.Equal(t, []string{"slack-main", "gmail", "notion"}, flow.ExtractConnectionIDs(tree))
	assert.Equal(t, []string{"helper", "writer"}, flow.ExtractAgentIDs(tree))
	assert.Equal(t, []string{}, flow.ExtractConnectionIDs(testutil.PieceTrigger("trigger", nil)))
}

func TestRewriteStepReferences(t *testing.T) {
	renames := map[string]string{"a": "step_1", "loop": "step_2"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "{{a.output}}", want: "{{step_1.output}}"},
		{name: "outside braces untouched", in: "a {{a}} a", want: "a {{step_1}} a"},
		{name: "property access untouched", in: "{{trigger.a}}", want: "{{trigger.a}}"},
		{name: "longer identifier untouched", in: "{{ab.output}}", want: "{{ab.output}}"},
		{name: "quoted literal untouched", in: "{{connections['a']}}", want: "{{connections['a']}}"},
		{name: "several", in: "{{loop.item}} - {{a['x'] + loop.index}}", want: "{{step_2.item}} - {{step_1['x'] + step_2.index}}"},
		{name: "unterminated", in: "{{a", want: "{{a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flow.RewriteStepReferences(tt.in, renames))
		})
	}
}
