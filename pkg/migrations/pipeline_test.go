package migrations_test

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/flow"
	"github.com/dukex/stepflow/pkg/migrations"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migratedAt = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newPipeline() *migrations.Pipeline {
	return migrations.New(slog.New(slog.DiscardHandler), migrations.WithClock(func() time.Time { return migratedAt }))
}

const legacyDocument = `{
	"id": "fv-1",
	"flowId": "flow-1",
	"displayName": "Legacy",
	"state": "DRAFT",
	"valid": true,
	"trigger": {
		"name": "trigger", "displayName": "Webhook", "type": "PIECE_TRIGGER", "valid": true,
		"settings": {
			"pieceName": "webhook", "pieceVersion": "0.1.0", "triggerName": "catch",
			"input": {"path": "/hook"},
			"inputUiInfo": {"customizedInputs": {"path": true}, "sampleDataFileId": "sample-1"}
		},
		"nextAction": {
			"name": "branch", "displayName": "Check", "type": "BRANCH", "valid": true,
			"settings": {"conditions": [[{"firstValue": "{{trigger.ok}}", "operator": "BOOLEAN_IS_TRUE"}]]},
			"onSuccessAction": {
				"name": "notify", "displayName": "Notify", "type": "PIECE", "valid": true,
				"settings": {
					"pieceName": "slack", "pieceVersion": "0.2.0", "actionName": "send_message",
					"input": {"auth": "{{connections.slack}}", "text": "ok {{ connections.other.token }}", "agent": "{{agents['helper']}}"},
					"inputUiInfo": {"customizedInputs": {"text": true}, "lastTestDate": "2023-01-01"}
				}
			},
			"nextAction": {
				"name": "code", "displayName": "Code", "type": "CODE", "valid": true,
				"settings": {"sourceCode": {"code": "", "packageJson": "{}"}, "input": {}}
			}
		}
	}
}`

func TestLoad_LegacyDocument(t *testing.T) {
	fv, err := newPipeline().Load([]byte(legacyDocument))
	require.NoError(t, err)

	assert.Equal(t, migrations.CurrentSchemaVersion, fv.SchemaVersion)
	assert.Equal(t, []string{"trigger", "branch", "notify", "code"}, flow.StepNames(fv.Trigger))
	assert.Equal(t, []string{"slack", "other"}, fv.ConnectionIDs)
	assert.Equal(t, []string{"helper"}, fv.AgentIDs)
	assert.True(t, migratedAt.Equal(fv.UpdatedAt))

	trigger := fv.Trigger.(*models.PieceTrigger)
	assert.Equal(t, models.PropertyExecutionTypeDynamic, trigger.Settings.PropertySettings["path"].Type)
	require.NotNil(t, trigger.Settings.SampleData)
	assert.Equal(t, "sample-1", trigger.Settings.SampleData.SampleDataFileID)

	router, ok := flow.GetStep(fv.Trigger, "branch").(*models.RouterAction)
	require.True(t, ok)
	require.Len(t, router.Branches, 2)
	assert.Equal(t, models.RouterExecuteFirstMatch, router.Settings.ExecutionType)
	assert.Equal(t, models.BranchTypeCondition, router.Branches[0].Branch.BranchType)
	assert.Equal(t, models.OperatorBooleanIsTrue, router.Branches[0].Branch.Conditions[0][0].Operator)
	assert.Equal(t, "notify", router.Branches[0].Child.Base().Name)
	assert.Equal(t, models.BranchTypeFallback, router.Branches[1].Branch.BranchType)
	assert.Nil(t, router.Branches[1].Child)
	assert.Equal(t, "code", router.NextAction.Base().Name)

	notify := router.Branches[0].Child.(*models.PieceAction)
	assert.Equal(t, "{{connections['slack']}}", notify.Settings.Input["auth"])
	assert.Equal(t, "ok {{ connections['other'].token }}", notify.Settings.Input["text"])
	assert.Equal(t, models.PropertyExecutionTypeDynamic, notify.Settings.PropertySettings["text"].Type)
	assert.Equal(t, models.PropertyExecutionTypeManual, notify.Settings.PropertySettings["auth"].Type)
	assert.Equal(t, "2023-01-01", notify.Settings.SampleData.LastTestDate)
}

func TestApply_IsIdempotent(t *testing.T) {
	p := newPipeline()

	doc, err := migrations.DecodeDocument([]byte(legacyDocument))
	require.NoError(t, err)

	once := p.Apply(doc)
	twice := p.Apply(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, "", doc.SchemaVersion(), "input document must not change")
	assert.Equal(t, "BRANCH", doc["trigger"].(map[string]any)["nextAction"].(map[string]any)["type"])
}

func TestApply_StartsFromStoredVersion(t *testing.T) {
	doc := migrations.Document{
		"schemaVersion": "3",
		"trigger": map[string]any{
			"name": "trigger", "type": "EMPTY", "settings": map[string]any{},
			"nextAction": map[string]any{
				"name": "old_branch", "type": "BRANCH",
				"settings": map[string]any{"input": map[string]any{"a": "{{connections.x}}"}},
			},
		},
	}

	out := newPipeline().Apply(doc)

	next := out["trigger"].(map[string]any)["nextAction"].(map[string]any)
	assert.Equal(t, "BRANCH", next["type"], "earlier migrations are not re-run")
	assert.Equal(t, "{{connections['x']}}", next["settings"].(map[string]any)["input"].(map[string]any)["a"])
	assert.Equal(t, []any{"x"}, out["connectionIds"])
	assert.Equal(t, migrations.CurrentSchemaVersion, out.SchemaVersion())
}

func TestTrailingFallback(t *testing.T) {
	tests := []struct {
		name         string
		branches     []any
		children     []any
		wantTypes    []string
		wantChildren []any
	}{
		{
			name:         "missing fallback is appended",
			branches:     []any{branch("CONDITION", "A")},
			children:     []any{step("a")},
			wantTypes:    []string{"CONDITION", "FALLBACK"},
			wantChildren: []any{"a", nil},
		},
		{
			name:         "misplaced fallback moves last with its child",
			branches:     []any{branch("FALLBACK", "Otherwise"), branch("CONDITION", "A")},
			children:     []any{step("f"), nil},
			wantTypes:    []string{"CONDITION", "FALLBACK"},
			wantChildren: []any{nil, "f"},
		},
		{
			name:         "extra fallbacks are demoted",
			branches:     []any{branch("FALLBACK", "X"), branch("FALLBACK", "Y")},
			children:     []any{step("x"), step("y")},
			wantTypes:    []string{"CONDITION", "FALLBACK"},
			wantChildren: []any{"x", "y"},
		},
		{
			name:         "extra children get branches",
			branches:     []any{branch("FALLBACK", "Otherwise")},
			children:     []any{nil, step("orphan")},
			wantTypes:    []string{"CONDITION", "FALLBACK"},
			wantChildren: []any{"orphan", nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := migrations.Document{
				"schemaVersion": "1",
				"trigger": map[string]any{
					"name": "trigger", "type": "EMPTY",
					"nextAction": map[string]any{
						"name": "router", "type": "ROUTER",
						"settings": map[string]any{"executionType": "EXECUTE_FIRST_MATCH", "branches": tt.branches},
						"children": tt.children,
					},
				},
			}

			out := newPipeline().Apply(doc)

			fv, err := newPipeline().Type(out)
			require.NoError(t, err)

			router := flow.GetStep(fv.Trigger, "router").(*models.RouterAction)
			require.Len(t, router.Branches, len(tt.wantTypes))

			for i, b := range router.Branches {
				assert.Equal(t, tt.wantTypes[i], string(b.Branch.BranchType))

				if tt.wantChildren[i] == nil {
					assert.Nil(t, b.Child)
				} else {
					require.NotNil(t, b.Child)
					assert.Equal(t, tt.wantChildren[i], b.Child.Base().Name)
				}
			}
		})
	}
}

func TestApply_PassesThroughUnrecognizedShapes(t *testing.T) {
	doc := migrations.Document{
		"trigger": map[string]any{
			"name": "trigger", "type": "EMPTY",
			"nextAction": map[string]any{"name": "weird", "type": "BRANCH"},
		},
	}

	out := newPipeline().Apply(doc)

	next := out["trigger"].(map[string]any)["nextAction"].(map[string]any)
	assert.Equal(t, "ROUTER", next["type"])
	assert.Equal(t, migrations.CurrentSchemaVersion, out.SchemaVersion())

	empty := newPipeline().Apply(migrations.Document{})
	assert.Equal(t, migrations.CurrentSchemaVersion, empty.SchemaVersion())
	assert.NotContains(t, empty, "trigger")
}

func TestMigrateTrigger(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "trigger", "type": "EMPTY",
		"nextAction": {"name": "b", "type": "BRANCH", "settings": {"conditions": []},
			"onFailureAction": {"name": "fail", "type": "CODE", "settings": {"input": {}}}}
	}`)

	trigger, err := newPipeline().MigrateTrigger(raw, "")
	require.NoError(t, err)

	router := flow.GetStep(trigger, "b").(*models.RouterAction)
	assert.Equal(t, "fail", router.Branches[1].Child.Base().Name)

	_, err = newPipeline().MigrateTrigger(json.RawMessage(`{"name": "x", "type": "CODE"}`), migrations.CurrentSchemaVersion)
	assert.Error(t, err)
}

func TestMigrations_AreOrdered(t *testing.T) {
	ms := newPipeline().Migrations()
	require.Len(t, ms, 5)

	assert.Equal(t, "", ms[0].TargetSchemaVersion)

	for i := 1; i < len(ms); i++ {
		assert.Greater(t, ms[i].TargetSchemaVersion, ms[i-1].TargetSchemaVersion)
	}
}

func branch(branchType, name string) map[string]any {
	b := map[string]any{"branchType": branchType, "branchName": name}
	if branchType == "CONDITION" {
		b["conditions"] = []any{[]any{map[string]any{"firstValue": "", "operator": "EXISTS"}}}
	}

	return b
}

func step(name string) map[string]any {
	return map[string]any{"name": name, "type": "CODE", "settings": map[string]any{"input": map[string]any{}}}
}
