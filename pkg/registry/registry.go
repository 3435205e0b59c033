// Package registry validates step settings against built-in and piece schemas.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/mohae/deepcopy"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrEmptyTrigger          = errors.New("trigger is not configured")
	ErrPieceNotRegistered    = errors.New("piece not registered")
	ErrInvalidSettings       = errors.New("invalid step settings")
	ErrInvalidPieceSchema    = errors.New("invalid piece schema")
	ErrUnsupportedStepType   = errors.New("unsupported step type")
	ErrInvalidRouterBranches = errors.New("invalid router branches")
)

// ValidationError lists why a step does not satisfy its declared shape.
type ValidationError struct {
	Step    string
	Reasons []string
	Err     error
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("step %s: %v", e.Step, e.Err)
	}

	return fmt.Sprintf("step %s: %v: %s", e.Step, e.Err, strings.Join(e.Reasons, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Piece describes the actions and triggers a piece provides. Each entry maps
// an action or trigger name to the JSON schema of its input.
type Piece struct {
	Name        string
	DisplayName string
	Actions     map[string]map[string]any
	Triggers    map[string]map[string]any
}

type pieceKind string

const (
	pieceAction  pieceKind = "action"
	pieceTrigger pieceKind = "trigger"
)

type pieceKey struct {
	piece string
	kind  pieceKind
	name  string
}

type Registry struct {
	logger  *slog.Logger
	builtin settingsSchemas

	mu     sync.RWMutex
	pieces map[string]Piece
	inputs map[pieceKey]map[string]any
}

func NewRegistry(logger *slog.Logger) (*Registry, error) {
	ensureFormats()

	builtin, err := builtinSchemas()
	if err != nil {
		return nil, err
	}

	return &Registry{
		logger:  logger,
		builtin: builtin,
		pieces:  make(map[string]Piece),
		inputs:  make(map[pieceKey]map[string]any),
	}, nil
}

// RegisterPiece adds or replaces a piece. Every input schema must compile.
func (r *Registry) RegisterPiece(p Piece) error {
	if p.Name == "" {
		return fmt.Errorf("%w: piece name is required", ErrInvalidPieceSchema)
	}

	inputs := make(map[pieceKey]map[string]any)

	add := func(kind pieceKind, entries map[string]map[string]any) error {
		for name, schema := range entries {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
				return fmt.Errorf("%w: %s %s %s: %v", ErrInvalidPieceSchema, p.Name, kind, name, err)
			}

			inputs[pieceKey{piece: p.Name, kind: kind, name: name}] = schema
		}

		return nil
	}

	if err := add(pieceAction, p.Actions); err != nil {
		return err
	}

	if err := add(pieceTrigger, p.Triggers); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.inputs {
		if key.piece == p.Name {
			delete(r.inputs, key)
		}
	}

	for key, schema := range inputs {
		r.inputs[key] = schema
	}

	r.pieces[p.Name] = p

	r.logger.Debug("registered piece",
		slog.String("piece", p.Name),
		slog.Int("actions", len(p.Actions)),
		slog.Int("triggers", len(p.Triggers)))

	return nil
}

// Pieces returns the registered pieces.
func (r *Registry) Pieces() []Piece {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pieces := make([]Piece, 0, len(r.pieces))
	for _, p := range r.pieces {
		pieces = append(pieces, p)
	}

	return pieces
}

// ValidateStep reports whether step satisfies the shape declared by its type.
func (r *Registry) ValidateStep(step models.Step) bool {
	if err := r.Validate(step); err != nil {
		r.logger.Debug("step is invalid",
			slog.String("step", step.Base().Name),
			slog.String("type", string(step.Type())),
			slog.String("error", err.Error()))

		return false
	}

	return true
}

// Validate checks step and returns a *ValidationError describing every
// failure.
func (r *Registry) Validate(step models.Step) error {
	name := step.Base().Name

	switch s := step.(type) {
	case *models.EmptyTrigger:
		return &ValidationError{Step: name, Err: ErrEmptyTrigger}
	case *models.PieceTrigger:
		if err := r.validateSettings(name, s.Type(), s.Settings); err != nil {
			return err
		}

		return r.validateInput(name, pieceKey{piece: s.Settings.PieceName, kind: pieceTrigger, name: s.Settings.TriggerName},
			s.Settings.Input, s.Settings.PropertySettings)
	case *models.PieceAction:
		if err := r.validateSettings(name, s.Type(), s.Settings); err != nil {
			return err
		}

		return r.validateInput(name, pieceKey{piece: s.Settings.PieceName, kind: pieceAction, name: s.Settings.ActionName},
			s.Settings.Input, s.Settings.PropertySettings)
	case *models.CodeAction:
		return r.validateSettings(name, s.Type(), s.Settings)
	case *models.LoopOnItemsAction:
		if err := r.validateSettings(name, s.Type(), s.Settings); err != nil {
			return err
		}

		if strings.TrimSpace(s.Settings.Items) == "" {
			return &ValidationError{Step: name, Reasons: []string{"items is required"}, Err: ErrInvalidSettings}
		}

		return nil
	case *models.RouterAction:
		if err := r.validateSettings(name, s.Type(), s.Settings); err != nil {
			return err
		}

		if reasons := routerReasons(s); len(reasons) > 0 {
			return &ValidationError{Step: name, Reasons: reasons, Err: ErrInvalidRouterBranches}
		}

		return nil
	}

	return &ValidationError{Step: name, Err: fmt.Errorf("%w: %s", ErrUnsupportedStepType, step.Type())}
}

func (r *Registry) validateSettings(name string, stepType models.StepType, settings any) error {
	schema, ok := r.builtin[stepType]
	if !ok {
		return &ValidationError{Step: name, Err: fmt.Errorf("%w: %s", ErrUnsupportedStepType, stepType)}
	}

	doc, err := settingsDocument(settings)
	if err != nil {
		return &ValidationError{Step: name, Reasons: []string{err.Error()}, Err: ErrInvalidSettings}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationError{Step: name, Reasons: []string{err.Error()}, Err: ErrInvalidSettings}
	}

	if !result.Valid() {
		return &ValidationError{Step: name, Reasons: resultErrors(result), Err: ErrInvalidSettings}
	}

	return nil
}

// validateInput checks a piece input against its registered schema.
// Properties resolved at run time (templated or DYNAMIC) are not checked.
func (r *Registry) validateInput(name string, key pieceKey, input map[string]any, props map[string]models.PropertySettings) error {
	r.mu.RLock()
	schema, ok := r.inputs[key]
	r.mu.RUnlock()

	if !ok {
		return &ValidationError{
			Step:    name,
			Reasons: []string{fmt.Sprintf("%s %q of piece %q", key.kind, key.name, key.piece)},
			Err:     ErrPieceNotRegistered,
		}
	}

	doc := map[string]any{}
	runtime := map[string]bool{}

	for k, v := range input {
		if s, isString := v.(string); (isString && strings.Contains(s, "{{")) || props[k].Type == models.PropertyExecutionTypeDynamic {
			runtime[k] = true

			continue
		}

		doc[k] = v
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(withoutProperties(schema, runtime)), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationError{Step: name, Reasons: []string{err.Error()}, Err: ErrInvalidSettings}
	}

	if !result.Valid() {
		return &ValidationError{Step: name, Reasons: resultErrors(result), Err: ErrInvalidSettings}
	}

	return nil
}

func withoutProperties(schema map[string]any, names map[string]bool) map[string]any {
	if len(names) == 0 {
		return schema
	}

	out, _ := deepcopy.Copy(schema).(map[string]any)

	if properties, ok := out["properties"].(map[string]any); ok {
		for name := range names {
			delete(properties, name)
		}
	}

	var required []string

	switch req := out["required"].(type) {
	case []string:
		required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}

	kept := make([]string, 0, len(required))
	for _, r := range required {
		if !names[r] {
			kept = append(kept, r)
		}
	}

	if len(kept) == 0 {
		delete(out, "required")
	} else {
		out["required"] = kept
	}

	return out
}

func routerReasons(router *models.RouterAction) []string {
	var reasons []string

	if len(router.Branches) == 0 {
		return []string{"router has no branches"}
	}

	for i, rb := range router.Branches {
		b := rb.Branch

		if b.BranchType == models.BranchTypeFallback {
			if i != len(router.Branches)-1 {
				reasons = append(reasons, fmt.Sprintf("branch %d: fallback must be the last branch", i))
			}

			continue
		}

		if b.BranchType != models.BranchTypeCondition {
			reasons = append(reasons, fmt.Sprintf("branch %d: unknown branch type %q", i, b.BranchType))

			continue
		}

		if len(b.Conditions) == 0 {
			reasons = append(reasons, fmt.Sprintf("branch %d: no conditions", i))
		}

		for g, group := range b.Conditions {
			if len(group) == 0 {
				reasons = append(reasons, fmt.Sprintf("branch %d: condition group %d is empty", i, g))
			}

			for c, cond := range group {
				at := fmt.Sprintf("branch %d: condition %d.%d", i, g, c)

				switch {
				case !cond.Operator.IsKnown():
					reasons = append(reasons, fmt.Sprintf("%s: unknown operator %q", at, cond.Operator))
				case cond.FirstValue == "":
					reasons = append(reasons, at+": first value is required")
				case !cond.Operator.IsSingleValue() && cond.SecondValue == "":
					reasons = append(reasons, at+": second value is required")
				}
			}
		}
	}

	return reasons
}
