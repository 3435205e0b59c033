package migrations

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"time"

	"github.com/dukex/stepflow/pkg/flow"
	"github.com/dukex/stepflow/pkg/models"
)

func (p *Pipeline) chain() []Migration {
	return []Migration{
		{Name: "legacy-branch-to-router", TargetSchemaVersion: "", Migrate: p.branchToRouter},
		{Name: "router-trailing-fallback", TargetSchemaVersion: "1", Migrate: p.trailingFallback},
		{Name: "property-settings", TargetSchemaVersion: "2", Migrate: p.propertySettings},
		{Name: "connection-reference-syntax", TargetSchemaVersion: "3", Migrate: p.connectionReferenceSyntax},
		{Name: "derive-dependencies", TargetSchemaVersion: "4", Migrate: p.deriveDependencies},
	}
}

func eachStep(doc Document, f func(Step) Step) {
	if t := doc.trigger(); t != nil {
		doc["trigger"] = transformSteps(t, f)
	}
}

const legacyBranchType = "BRANCH"

// branchToRouter turns BRANCH steps into two-branch routers: the success
// chain under a condition branch, the failure chain under the fallback.
func (p *Pipeline) branchToRouter(doc Document) Document {
	eachStep(doc, func(s Step) Step {
		if stepType(s) != legacyBranchType {
			return s
		}

		settings := settingsOf(s)

		conditions, ok := settings["conditions"].([]any)
		if !ok {
			p.unrecognized("legacy-branch-to-router", s, "branch has no conditions")

			conditions = []any{}
		}

		delete(settings, "conditions")
		settings["executionType"] = string(models.RouterExecuteFirstMatch)
		settings["branches"] = []any{
			map[string]any{
				"branchType": string(models.BranchTypeCondition),
				"branchName": "On Success",
				"conditions": conditions,
			},
			map[string]any{
				"branchType": string(models.BranchTypeFallback),
				"branchName": "Otherwise",
			},
		}

		s["type"] = string(models.StepTypeRouter)
		s["children"] = []any{s["onSuccessAction"], s["onFailureAction"]}
		delete(s, "onSuccessAction")
		delete(s, "onFailureAction")

		return s
	})

	doc["schemaVersion"] = "1"

	return doc
}

// trailingFallback makes every router end with exactly one fallback branch.
func (p *Pipeline) trailingFallback(doc Document) Document {
	eachStep(doc, func(s Step) Step {
		if stepType(s) != string(models.StepTypeRouter) {
			return s
		}

		settings := settingsOf(s)

		branches, ok := settings["branches"].([]any)
		if !ok {
			p.unrecognized("router-trailing-fallback", s, "router has no branches")

			return s
		}

		children, _ := s["children"].([]any)
		for len(branches) < len(children) {
			branches = append(branches, map[string]any{
				"branchType": string(models.BranchTypeCondition),
				"branchName": fmt.Sprintf("Branch %d", len(branches)+1),
				"conditions": defaultConditions(),
			})
		}

		for len(children) < len(branches) {
			children = append(children, nil)
		}

		var (
			kept         []any
			keptChildren []any
			fallback     any
			fallbackNext any
			hasFallback  bool
		)

		for i, b := range branches {
			branch, _ := b.(map[string]any)
			if branch != nil && branch["branchType"] == string(models.BranchTypeFallback) {
				if hasFallback {
					// only the last fallback survives
					demoted := fallback.(map[string]any)
					demoted["branchType"] = string(models.BranchTypeCondition)
					demoted["conditions"] = defaultConditions()
					kept = append(kept, demoted)
					keptChildren = append(keptChildren, fallbackNext)
				}

				fallback, fallbackNext, hasFallback = branch, children[i], true

				continue
			}

			kept = append(kept, b)
			keptChildren = append(keptChildren, children[i])
		}

		if !hasFallback {
			fb := models.FallbackBranch()
			fallback = map[string]any{"branchType": string(fb.BranchType), "branchName": fb.BranchName}
		}

		settings["branches"] = append(kept, fallback)
		s["children"] = append(keptChildren, fallbackNext)

		return s
	})

	doc["schemaVersion"] = "2"

	return doc
}

var sampleDataKeys = []string{"sampleDataFileId", "sampleDataInputFileId", "lastTestDate"}

// propertySettings replaces inputUiInfo with per-property settings and
// sample data references.
func (p *Pipeline) propertySettings(doc Document) Document {
	eachStep(doc, func(s Step) Step {
		settings := settingsOf(s)
		ui, hasUI := settings["inputUiInfo"].(map[string]any)

		switch stepType(s) {
		case string(models.StepTypePiece), string(models.StepTypePieceTrigger):
			props, _ := settings["propertySettings"].(map[string]any)
			if props == nil {
				props = map[string]any{}
			}

			customized, _ := ui["customizedInputs"].(map[string]any)
			input, _ := settings["input"].(map[string]any)

			keys := slices.Concat(slices.Collect(maps.Keys(input)), slices.Collect(maps.Keys(customized)))
			for _, key := range keys {
				if _, ok := props[key]; ok {
					continue
				}

				execType := models.PropertyExecutionTypeManual
				if dynamic, _ := customized[key].(bool); dynamic {
					execType = models.PropertyExecutionTypeDynamic
				}

				props[key] = map[string]any{"type": string(execType)}
			}

			settings["propertySettings"] = props
		}

		if !hasUI {
			return s
		}

		sample := map[string]any{}
		for _, key := range sampleDataKeys {
			if v, ok := ui[key]; ok && v != nil {
				sample[key] = v
			}
		}

		if _, exists := settings["sampleData"]; !exists && len(sample) > 0 {
			settings["sampleData"] = sample
		}

		delete(settings, "inputUiInfo")

		return s
	})

	doc["schemaVersion"] = "3"

	return doc
}

var legacyConnectionRe = regexp.MustCompile(`\{\{(\s*)connections\.([A-Za-z0-9_-]+)`)

// connectionReferenceSyntax rewrites {{connections.name}} to {{connections['name']}}.
func (p *Pipeline) connectionReferenceSyntax(doc Document) Document {
	eachStep(doc, func(s Step) Step {
		settings := settingsOf(s)
		if input, ok := settings["input"].(map[string]any); ok {
			settings["input"] = rewriteRawStrings(input, func(v string) string {
				return legacyConnectionRe.ReplaceAllString(v, "{{${1}connections['${2}']")
			})
		}

		return s
	})

	doc["schemaVersion"] = "4"

	return doc
}

// deriveDependencies stores the connection and agent ids referenced by the tree.
func (p *Pipeline) deriveDependencies(doc Document) Document {
	connections := []any{}
	agents := []any{}
	seenConnections := map[string]bool{}
	seenAgents := map[string]bool{}

	if t := doc.trigger(); t != nil {
		walkSteps(t, func(s Step) {
			input, _ := settingsOf(s)["input"].(map[string]any)
			visitRawStrings(input, func(v string) {
				for _, id := range flow.ParseConnectionReferences(v) {
					if !seenConnections[id] {
						seenConnections[id] = true
						connections = append(connections, id)
					}
				}

				for _, id := range flow.ParseAgentReferences(v) {
					if !seenAgents[id] {
						seenAgents[id] = true
						agents = append(agents, id)
					}
				}
			})
		})
	}

	doc["connectionIds"] = connections
	doc["agentIds"] = agents
	doc["updated"] = p.now().UTC().Format(time.RFC3339Nano)
	doc["schemaVersion"] = CurrentSchemaVersion

	return doc
}

func defaultConditions() []any {
	c := models.DefaultConditions()[0][0]

	return []any{[]any{map[string]any{
		"firstValue":    c.FirstValue,
		"secondValue":   c.SecondValue,
		"operator":      string(c.Operator),
		"caseSensitive": c.CaseSensitive,
	}}}
}

func visitRawStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			visitRawStrings(t[k], fn)
		}
	case []any:
		for _, e := range t {
			visitRawStrings(e, fn)
		}
	}
}

func rewriteRawStrings(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		return fn(t)
	case map[string]any:
		for k, e := range t {
			t[k] = rewriteRawStrings(e, fn)
		}

		return t
	case []any:
		for i, e := range t {
			t[i] = rewriteRawStrings(e, fn)
		}

		return t
	}

	return v
}
