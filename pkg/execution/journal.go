package execution

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/models"
)

var (
	ErrScopeNotFound     = errors.New("scope not found")
	ErrNotLoopStep       = errors.New("step is not a loop")
	ErrIterationNotFound = errors.New("loop iteration not found")
	ErrNilStepOutput     = errors.New("step output is null")
	ErrNilIteration      = errors.New("loop iteration is null")
)

// PathEntry addresses one iteration of a loop step.
type PathEntry struct {
	LoopName  string `json:"loopName"  validate:"required"`
	Iteration int    `json:"iteration" validate:"gte=0"`
}

// Path addresses a scope from the root, outermost loop first.
type Path []PathEntry

func (p Path) Append(loopName string, iteration int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)

	return append(out, PathEntry{LoopName: loopName, Iteration: iteration})
}

func (p Path) String() string {
	s := ""
	for i, e := range p {
		if i > 0 {
			s += "."
		}

		s += fmt.Sprintf("%s[%d]", e.LoopName, e.Iteration)
	}

	return s
}

// Journal is the output record of a single run. It is not safe for
// concurrent use.
type Journal struct {
	root *Scope
}

func NewJournal() *Journal {
	return &Journal{root: NewScope()}
}

// Steps returns the root scope.
func (j *Journal) Steps() *Scope {
	return j.root
}

// UpsertStep writes out under name in the scope addressed by path. With
// createScopeIfMissing, a missing loop output on the path is created and the
// next iteration of a loop is appended when the path names it.
func (j *Journal) UpsertStep(path Path, name string, out *StepOutput, createScopeIfMissing bool) error {
	if out == nil {
		return fmt.Errorf("%w: %s", ErrNilStepOutput, name)
	}

	scope, err := j.resolve(path, createScopeIfMissing)
	if err != nil {
		return err
	}

	if prev, ok := scope.Get(name); ok && prev != nil && out.IsLoop() && prev.Loop != nil {
		switch {
		case out.Loop == nil:
			loop := *prev.Loop
			out.Loop = &loop
		case out.Loop.Iterations == nil:
			out.Loop.Iterations = prev.Loop.Iterations
		}
	}

	scope.Set(name, out)

	return nil
}

// GetStep reads the output of name in the scope addressed by path.
func (j *Journal) GetStep(path Path, name string) (*StepOutput, bool, error) {
	scope, err := j.resolve(path, false)
	if err != nil {
		return nil, false, err
	}

	out, ok := scope.Get(name)

	return out, ok, nil
}

// StateAtPath returns the scope addressed by path.
func (j *Journal) StateAtPath(path Path) (*Scope, error) {
	return j.resolve(path, false)
}

// PathToStep returns the path of the scope holding the last recorded
// occurrence of name.
func (j *Journal) PathToStep(name string) (Path, bool) {
	return pathToStep(j.root, Path{}, name)
}

// FindLastStepWithStatus returns the last step recorded with status, or the
// last step recorded at all when status is nil.
func (j *Journal) FindLastStepWithStatus(status *StepStatus) (string, bool) {
	return FindLastStepWithStatus(j.root, status)
}

// LoopSteps returns every loop output of the run by step name.
func (j *Journal) LoopSteps() map[string]*StepOutput {
	return GetLoopSteps(j.root)
}

func (j *Journal) resolve(path Path, create bool) (*Scope, error) {
	scope := j.root

	for depth, entry := range path {
		out, ok := scope.Get(entry.LoopName)
		if !ok || out == nil {
			if !create {
				return nil, fmt.Errorf("%w: %s at %s", ErrScopeNotFound, entry.LoopName, path[:depth])
			}

			out = &StepOutput{Type: models.StepTypeLoopOnItems, Status: StepStatusRunning}
			scope.Set(entry.LoopName, out)
		}

		if !out.IsLoop() {
			return nil, fmt.Errorf("%w: %s is %s", ErrNotLoopStep, entry.LoopName, out.Type)
		}

		if out.Loop == nil {
			if !create {
				return nil, fmt.Errorf("%w: %s has no iterations", ErrIterationNotFound, entry.LoopName)
			}

			out.Loop = &LoopOutput{Iterations: []*Scope{}}
		}

		iterations := out.Loop.Iterations
		switch {
		case entry.Iteration < 0:
			return nil, fmt.Errorf("%w: %s[%d]", ErrIterationNotFound, entry.LoopName, entry.Iteration)
		case entry.Iteration < len(iterations):
		case create && entry.Iteration == len(iterations):
			out.Loop.Iterations = append(iterations, NewScope())
		default:
			return nil, fmt.Errorf("%w: %s[%d] of %d", ErrIterationNotFound, entry.LoopName, entry.Iteration, len(iterations))
		}

		scope = out.Loop.Iterations[entry.Iteration]
		if scope == nil {
			if !create {
				return nil, fmt.Errorf("%w: %s[%d]", ErrNilIteration, entry.LoopName, entry.Iteration)
			}

			scope = NewScope()
			out.Loop.Iterations[entry.Iteration] = scope
		}
	}

	return scope, nil
}

func pathToStep(scope *Scope, at Path, name string) (Path, bool) {
	var (
		found Path
		ok    bool
	)

	scope.Each(func(stepName string, out *StepOutput) bool {
		if out == nil {
			return true
		}

		if stepName == name {
			found, ok = at, true
		}

		if out.IsLoop() && out.Loop != nil {
			for i, iteration := range out.Loop.Iterations {
				if p, inner := pathToStep(iteration, at.Append(stepName, i), name); inner {
					found, ok = p, true
				}
			}
		}

		return true
	})

	return found, ok
}

// FindLastStepWithStatus walks scope in recording order, loop iterations
// before the loop step itself.
func FindLastStepWithStatus(scope *Scope, status *StepStatus) (string, bool) {
	var (
		last  string
		found bool
	)

	scope.Each(func(name string, out *StepOutput) bool {
		if out == nil {
			return true
		}

		if out.IsLoop() && out.Loop != nil {
			for _, iteration := range out.Loop.Iterations {
				if inner, ok := FindLastStepWithStatus(iteration, status); ok {
					last, found = inner, true
				}
			}
		}

		if status == nil || out.Status == *status {
			last, found = name, true
		}

		return true
	})

	return last, found
}

// GetLoopSteps flattens the loop outputs of scope by name. Outputs recorded
// inside iterations replace outer ones of the same name.
func GetLoopSteps(scope *Scope) map[string]*StepOutput {
	loops := map[string]*StepOutput{}

	scope.Each(func(name string, out *StepOutput) bool {
		if out == nil || !out.IsLoop() {
			return true
		}

		loops[name] = out

		if out.Loop != nil {
			for _, iteration := range out.Loop.Iterations {
				for inner, innerOut := range GetLoopSteps(iteration) {
					loops[inner] = innerOut
				}
			}
		}

		return true
	})

	return loops
}

type journalJSON struct {
	Steps *Scope `json:"steps"`
}

func (j *Journal) MarshalJSON() ([]byte, error) {
	return json.Marshal(journalJSON{Steps: j.root})
}

func (j *Journal) UnmarshalJSON(data []byte) error {
	var raw journalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Steps == nil {
		raw.Steps = NewScope()
	}

	j.root = raw.Steps

	return nil
}
