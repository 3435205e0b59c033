package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownStepType    = errors.New("unknown step type")
	ErrUnexpectedStepKind = errors.New("unexpected step kind")
	ErrRouterMisaligned   = errors.New("router children do not match branches")
)

// stepJSON is the wire shape of a step. Router branches travel in settings
// and their children in a parallel array that may contain nulls.
type stepJSON struct {
	Name            string          `json:"name"`
	DisplayName     string          `json:"displayName"`
	Type            StepType        `json:"type"`
	Valid           bool            `json:"valid"`
	Skip            bool            `json:"skip,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
	NextAction      *stepJSON       `json:"nextAction,omitempty"`
	FirstLoopAction *stepJSON       `json:"firstLoopAction,omitempty"`
	Children        []*stepJSON     `json:"children,omitempty"`
}

type routerSettingsJSON struct {
	RouterSettings

	Branches []Branch `json:"branches"`
}

// MarshalStep encodes a step and its descendants.
func MarshalStep(s Step) ([]byte, error) {
	w, err := toWire(s)
	if err != nil {
		return nil, err
	}

	return json.Marshal(w)
}

// UnmarshalTrigger decodes a trigger and its descendants.
func UnmarshalTrigger(data []byte) (Trigger, error) {
	var w stepJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	return triggerFromWire(&w)
}

// UnmarshalAction decodes an action and its descendants.
func UnmarshalAction(data []byte) (Action, error) {
	var w stepJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	return actionFromWire(&w)
}

func toWire(s Step) (*stepJSON, error) {
	if IsNil(s) {
		return nil, nil
	}

	base := s.Base()
	w := &stepJSON{
		Name:        base.Name,
		DisplayName: base.DisplayName,
		Type:        s.Type(),
		Valid:       base.Valid,
	}

	if a, ok := s.(Action); ok {
		w.Skip = a.IsSkipped()
	}

	var (
		settings any
		err      error
	)

	switch v := s.(type) {
	case *EmptyTrigger:
		settings = struct{}{}
	case *PieceTrigger:
		settings = v.Settings
	case *CodeAction:
		settings = v.Settings
	case *PieceAction:
		settings = v.Settings
	case *LoopOnItemsAction:
		settings = v.Settings

		if w.FirstLoopAction, err = toWire(v.FirstLoopAction); err != nil {
			return nil, err
		}
	case *RouterAction:
		rs := routerSettingsJSON{RouterSettings: v.Settings, Branches: make([]Branch, len(v.Branches))}
		w.Children = make([]*stepJSON, len(v.Branches))

		for i, b := range v.Branches {
			rs.Branches[i] = b.Branch

			if w.Children[i], err = toWire(b.Child); err != nil {
				return nil, err
			}
		}

		settings = rs
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownStepType, s)
	}

	if w.Settings, err = json.Marshal(settings); err != nil {
		return nil, fmt.Errorf("encoding settings of %q: %w", base.Name, err)
	}

	if w.NextAction, err = toWire(base.NextAction); err != nil {
		return nil, err
	}

	return w, nil
}

func triggerFromWire(w *stepJSON) (Trigger, error) {
	if !w.Type.IsTrigger() {
		return nil, fmt.Errorf("%w: %q is not a trigger type", ErrUnexpectedStepKind, w.Type)
	}

	base, err := baseFromWire(w)
	if err != nil {
		return nil, err
	}

	if w.Type == StepTypeEmpty {
		return &EmptyTrigger{StepBase: base}, nil
	}

	t := &PieceTrigger{StepBase: base}
	if err := decodeSettings(w, &t.Settings); err != nil {
		return nil, err
	}

	return t, nil
}

func actionFromWire(w *stepJSON) (Action, error) {
	if w == nil {
		return nil, nil
	}

	if !w.Type.IsAction() {
		if w.Type.IsTrigger() {
			return nil, fmt.Errorf("%w: %q is not an action type", ErrUnexpectedStepKind, w.Type)
		}

		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, w.Type)
	}

	base, err := baseFromWire(w)
	if err != nil {
		return nil, err
	}

	ab := ActionBase{StepBase: base, Skip: w.Skip}

	switch w.Type {
	case StepTypeCode:
		a := &CodeAction{ActionBase: ab}

		return a, decodeSettings(w, &a.Settings)
	case StepTypePiece:
		a := &PieceAction{ActionBase: ab}

		return a, decodeSettings(w, &a.Settings)
	case StepTypeLoopOnItems:
		a := &LoopOnItemsAction{ActionBase: ab}
		if err := decodeSettings(w, &a.Settings); err != nil {
			return nil, err
		}

		if a.FirstLoopAction, err = actionFromWire(w.FirstLoopAction); err != nil {
			return nil, err
		}

		return a, nil
	default:
		return routerFromWire(w, ab)
	}
}

func routerFromWire(w *stepJSON, ab ActionBase) (*RouterAction, error) {
	var rs routerSettingsJSON
	if err := decodeSettings(w, &rs); err != nil {
		return nil, err
	}

	if len(w.Children) > len(rs.Branches) {
		return nil, fmt.Errorf("%w: router %q has %d children for %d branches",
			ErrRouterMisaligned, w.Name, len(w.Children), len(rs.Branches))
	}

	r := &RouterAction{ActionBase: ab, Settings: rs.RouterSettings, Branches: make([]RouterBranch, len(rs.Branches))}

	for i, b := range rs.Branches {
		r.Branches[i].Branch = b

		if i < len(w.Children) {
			child, err := actionFromWire(w.Children[i])
			if err != nil {
				return nil, err
			}

			r.Branches[i].Child = child
		}
	}

	return r, nil
}

func baseFromWire(w *stepJSON) (StepBase, error) {
	next, err := actionFromWire(w.NextAction)
	if err != nil {
		return StepBase{}, err
	}

	return StepBase{
		Name:        w.Name,
		DisplayName: w.DisplayName,
		Valid:       w.Valid,
		NextAction:  next,
	}, nil
}

func decodeSettings(w *stepJSON, target any) error {
	if len(w.Settings) == 0 || string(w.Settings) == "null" {
		return nil
	}

	if err := json.Unmarshal(w.Settings, target); err != nil {
		return fmt.Errorf("decoding settings of %q: %w", w.Name, err)
	}

	return nil
}

// TriggerEnvelope carries a trigger inside a JSON payload.
type TriggerEnvelope struct {
	Trigger Trigger
}

func (e TriggerEnvelope) MarshalJSON() ([]byte, error) {
	if IsNil(e.Trigger) {
		return []byte("null"), nil
	}

	return MarshalStep(e.Trigger)
}

func (e *TriggerEnvelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Trigger = nil

		return nil
	}

	t, err := UnmarshalTrigger(data)
	if err != nil {
		return err
	}

	e.Trigger = t

	return nil
}

// ActionEnvelope carries an action inside a JSON payload.
type ActionEnvelope struct {
	Action Action
}

func (e ActionEnvelope) MarshalJSON() ([]byte, error) {
	if IsNil(e.Action) {
		return []byte("null"), nil
	}

	return MarshalStep(e.Action)
}

func (e *ActionEnvelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Action = nil

		return nil
	}

	a, err := UnmarshalAction(data)
	if err != nil {
		return err
	}

	e.Action = a

	return nil
}

type flowVersionJSON struct {
	ID            string           `json:"id"`
	FlowID        string           `json:"flowId"`
	FolderID      string           `json:"folderId,omitempty"`
	DisplayName   string           `json:"displayName"`
	Trigger       TriggerEnvelope  `json:"trigger"`
	Valid         bool             `json:"valid"`
	State         FlowVersionState `json:"state"`
	SchemaVersion string           `json:"schemaVersion,omitempty"`
	ConnectionIDs []string         `json:"connectionIds"`
	AgentIDs      []string         `json:"agentIds"`
	UpdatedBy     string           `json:"updatedBy,omitempty"`
	CreatedAt     time.Time        `json:"created"`
	UpdatedAt     time.Time        `json:"updated"`
}

func (f FlowVersion) MarshalJSON() ([]byte, error) {
	w := flowVersionJSON{
		ID:            f.ID,
		FlowID:        f.FlowID,
		FolderID:      f.FolderID,
		DisplayName:   f.DisplayName,
		Trigger:       TriggerEnvelope{Trigger: f.Trigger},
		Valid:         f.Valid,
		State:         f.State,
		SchemaVersion: f.SchemaVersion,
		ConnectionIDs: nonNil(f.ConnectionIDs),
		AgentIDs:      nonNil(f.AgentIDs),
		UpdatedBy:     f.UpdatedBy,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}

	return json.Marshal(w)
}

func (f *FlowVersion) UnmarshalJSON(data []byte) error {
	var w flowVersionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*f = FlowVersion{
		ID:            w.ID,
		FlowID:        w.FlowID,
		FolderID:      w.FolderID,
		DisplayName:   w.DisplayName,
		Trigger:       w.Trigger.Trigger,
		Valid:         w.Valid,
		State:         w.State,
		SchemaVersion: w.SchemaVersion,
		ConnectionIDs: w.ConnectionIDs,
		AgentIDs:      w.AgentIDs,
		UpdatedBy:     w.UpdatedBy,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}

	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
