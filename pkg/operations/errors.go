package operations

import (
	"errors"
	"fmt"
)

// Error codes reported by operations.
const (
	CodeStepNotFound         = "STEP_NOT_FOUND"
	CodeFlowOperationInvalid = "FLOW_OPERATION_INVALID"
)

var (
	// ErrStepNotFound indicates an operation referenced a step absent from the tree.
	ErrStepNotFound = errors.New("step not found")

	// ErrFlowOperationInvalid indicates a structural precondition failed.
	ErrFlowOperationInvalid = errors.New("flow operation invalid")

	// ErrFlowVersionLocked indicates an edit was attempted on a locked version.
	ErrFlowVersionLocked = errors.New("flow version is locked")
)

// Error wraps an operation failure with its code and a human-readable message.
type Error struct {
	Op      string // Operation type, e.g. "ADD_ACTION"
	Code    string // CodeStepNotFound or CodeFlowOperationInvalid
	Step    string // Step name if applicable
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Step != "" {
		return fmt.Sprintf("%s %s: step %q: %s", e.Op, e.Code, e.Step, msg)
	}

	return fmt.Sprintf("%s %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error code as well as the wrapped error.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeStepNotFound:
		if target == ErrStepNotFound {
			return true
		}
	case CodeFlowOperationInvalid:
		if target == ErrFlowOperationInvalid {
			return true
		}
	}

	return e.Err != nil && errors.Is(e.Err, target)
}

func stepNotFound(op OperationType, step string) *Error {
	return &Error{Op: string(op), Code: CodeStepNotFound, Step: step, Message: "step not found", Err: ErrStepNotFound}
}

func invalid(op OperationType, step, format string, args ...any) *Error {
	return &Error{
		Op:      string(op),
		Code:    CodeFlowOperationInvalid,
		Step:    step,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrFlowOperationInvalid,
	}
}

// IsStepNotFound checks if an error reports a missing step.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

// IsInvalid checks if an error reports a failed structural precondition.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrFlowOperationInvalid)
}

// IsLocked checks if an error reports an edit on a locked flow version.
func IsLocked(err error) bool {
	return errors.Is(err, ErrFlowVersionLocked)
}
