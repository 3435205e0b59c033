// Package migrations upgrades persisted flow version documents to the current schema.
package migrations

import (
	"encoding/json"

	"github.com/mohae/deepcopy"
)

// Document is a flow version as decoded from storage, before typing. Legacy
// shapes the typed model no longer expresses remain representable.
type Document map[string]any

// Step is a raw step inside a Document.
type Step = map[string]any

// DecodeDocument parses a JSON flow version document.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// SchemaVersion returns the schema version tag, or "" when absent.
func (d Document) SchemaVersion() string {
	v, _ := d["schemaVersion"].(string)

	return v
}

func (d Document) clone() Document {
	c, _ := deepcopy.Copy(map[string]any(d)).(map[string]any)

	return c
}

func (d Document) trigger() Step {
	t, _ := d["trigger"].(map[string]any)

	return t
}

// legacy links carried by the BRANCH step of the first schema
var childKeys = []string{"firstLoopAction", "onSuccessAction", "onFailureAction"}

// transformSteps rewrites every raw step of the tree rooted at s, pre-order.
// f receives each step after its ancestors were rewritten and may replace it.
// The document must be private to the caller; steps are modified in place.
func transformSteps(s Step, f func(Step) Step) Step {
	if s == nil {
		return nil
	}

	s = f(s)
	if s == nil {
		return nil
	}

	for _, key := range childKeys {
		if child, ok := s[key].(map[string]any); ok {
			s[key] = transformSteps(child, f)
		}
	}

	if children, ok := s["children"].([]any); ok {
		for i, c := range children {
			if child, ok := c.(map[string]any); ok {
				children[i] = transformSteps(child, f)
			}
		}
	}

	if next, ok := s["nextAction"].(map[string]any); ok {
		s["nextAction"] = transformSteps(next, f)
	}

	return s
}

// walkSteps visits every raw step of the tree in transformSteps order.
func walkSteps(s Step, fn func(Step)) {
	transformSteps(s, func(step Step) Step {
		fn(step)

		return step
	})
}

func settingsOf(s Step) map[string]any {
	settings, ok := s["settings"].(map[string]any)
	if !ok {
		settings = map[string]any{}
		s["settings"] = settings
	}

	return settings
}

func stepType(s Step) string {
	t, _ := s["type"].(string)

	return t
}

func stepName(s Step) string {
	n, _ := s["name"].(string)

	return n
}
