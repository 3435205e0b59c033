// Package execution records the outputs of a flow run, scoped by loop iteration.
package execution

import (
	"encoding/json"
	"fmt"

	"github.com/dukex/stepflow/pkg/models"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type StepStatus string

const (
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusSucceeded StepStatus = "SUCCEEDED"
	StepStatusFailed    StepStatus = "FAILED"
	StepStatusPaused    StepStatus = "PAUSED"
	StepStatusStopped   StepStatus = "STOPPED"
)

// StepOutput is what a run recorded for one step. Duration is in milliseconds.
type StepOutput struct {
	Type         models.StepType `json:"type"                   validate:"required"`
	Status       StepStatus      `json:"status"                 validate:"required,oneof=RUNNING SUCCEEDED FAILED PAUSED STOPPED"`
	Input        any             `json:"input,omitempty"`
	Output       any             `json:"output,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Duration     int64           `json:"duration,omitempty"`
	Loop         *LoopOutput     `json:"loop,omitempty"`
}

// IsLoop reports whether the output belongs to a loop step.
func (o *StepOutput) IsLoop() bool {
	return o.Type == models.StepTypeLoopOnItems
}

// LoopOutput holds the current item and one scope per iteration.
type LoopOutput struct {
	Item       any      `json:"item,omitempty"`
	Index      int      `json:"index"`
	Iterations []*Scope `json:"iterations" validate:"omitempty,dive,required"`
}

func (l *LoopOutput) UnmarshalJSON(data []byte) error {
	type loopOutput LoopOutput

	var raw loopOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for i, iteration := range raw.Iterations {
		if iteration == nil {
			return fmt.Errorf("%w: iteration %d", ErrNilIteration, i)
		}
	}

	*l = LoopOutput(raw)

	return nil
}

// Scope maps step names to outputs in recording order.
type Scope struct {
	steps *orderedmap.OrderedMap[string, *StepOutput]
}

func NewScope() *Scope {
	return &Scope{steps: orderedmap.New[string, *StepOutput]()}
}

func (s *Scope) Get(name string) (*StepOutput, bool) {
	if s == nil || s.steps == nil {
		return nil, false
	}

	return s.steps.Get(name)
}

// Set stores out under name. A name already present keeps its position.
func (s *Scope) Set(name string, out *StepOutput) {
	s.steps.Set(name, out)
}

func (s *Scope) Len() int {
	if s == nil || s.steps == nil {
		return 0
	}

	return s.steps.Len()
}

// Names returns the step names in recording order.
func (s *Scope) Names() []string {
	names := make([]string, 0, s.Len())
	if s.Len() == 0 {
		return names
	}

	for pair := s.steps.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}

	return names
}

// Each calls fn for every step in recording order until fn returns false.
func (s *Scope) Each(fn func(name string, out *StepOutput) bool) {
	if s == nil || s.steps == nil {
		return
	}

	for pair := s.steps.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

func (s *Scope) MarshalJSON() ([]byte, error) {
	if s == nil || s.steps == nil {
		return []byte("{}"), nil
	}

	return s.steps.MarshalJSON()
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	steps := orderedmap.New[string, *StepOutput]()
	if err := json.Unmarshal(data, steps); err != nil {
		return err
	}

	for pair := steps.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			return fmt.Errorf("%w: %s", ErrNilStepOutput, pair.Key)
		}
	}

	s.steps = steps

	return nil
}
