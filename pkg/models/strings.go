package models

import (
	"maps"
	"slices"
)

// Input returns the input map of steps that declare one.
func Input(s Step) map[string]any {
	switch v := s.(type) {
	case *PieceTrigger:
		return v.Settings.Input
	case *CodeAction:
		return v.Settings.Input
	case *PieceAction:
		return v.Settings.Input
	}

	return nil
}

// VisitStrings calls fn for every user-authored string in the settings of s:
// input values (recursively, map keys in sorted order), loop item expressions and router condition
// operands. Descendants of s are not visited.
func VisitStrings(s Step, fn func(string)) {
	visitValue(Input(s), fn)

	switch v := s.(type) {
	case *LoopOnItemsAction:
		fn(v.Settings.Items)
	case *RouterAction:
		for _, b := range v.Branches {
			for _, group := range b.Branch.Conditions {
				for _, c := range group {
					fn(c.FirstValue)
					fn(c.SecondValue)
				}
			}
		}
	}
}

// MapStrings replaces every string VisitStrings would visit with fn(value).
// Maps and slices are rebuilt, so s must not share settings with a tree the
// caller wants to keep.
func MapStrings(s Step, fn func(string) string) {
	switch v := s.(type) {
	case *PieceTrigger:
		v.Settings.Input = mapInput(v.Settings.Input, fn)
	case *CodeAction:
		v.Settings.Input = mapInput(v.Settings.Input, fn)
	case *PieceAction:
		v.Settings.Input = mapInput(v.Settings.Input, fn)
	case *LoopOnItemsAction:
		v.Settings.Items = fn(v.Settings.Items)
	case *RouterAction:
		for i := range v.Branches {
			b := CloneBranch(v.Branches[i].Branch)
			for _, group := range b.Conditions {
				for j := range group {
					group[j].FirstValue = fn(group[j].FirstValue)
					group[j].SecondValue = fn(group[j].SecondValue)
				}
			}

			v.Branches[i].Branch = b
		}
	}
}

// ClearSampleData drops cached test-run references from s.
func ClearSampleData(s Step) {
	switch v := s.(type) {
	case *PieceTrigger:
		v.Settings.SampleData = nil
	case *CodeAction:
		v.Settings.SampleData = nil
	case *PieceAction:
		v.Settings.SampleData = nil
	case *LoopOnItemsAction:
		v.Settings.SampleData = nil
	case *RouterAction:
		v.Settings.SampleData = nil
	}
}

func visitValue(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			visitValue(t[k], fn)
		}
	case []any:
		for _, e := range t {
			visitValue(e, fn)
		}
	}
}

func mapInput(in map[string]any, fn func(string) string) map[string]any {
	if in == nil {
		return nil
	}

	out, _ := mapValue(in, fn).(map[string]any)

	return out
}

func mapValue(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		return fn(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = mapValue(e, fn)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = mapValue(e, fn)
		}

		return out
	}

	return v
}
