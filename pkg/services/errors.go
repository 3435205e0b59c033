// Package services provides the flow version and run use cases on top of storage, events and tracing.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/operations"
	"github.com/dukex/stepflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidStepPath  = errors.New("invalid step path")
	ErrFlowIDRequired   = errors.New("flow ID is required")
	ErrRunIDRequired    = errors.New("run ID is required")
	ErrInvalidOperation = errors.New("invalid operation request")

	// Not Found Errors (404 Not Found).
	ErrFlowVersionNotFound = persistence.ErrFlowVersionNotFound
	ErrRunNotFound         = persistence.ErrJournalNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStepPath) ||
		errors.Is(err, ErrFlowIDRequired) ||
		errors.Is(err, ErrRunIDRequired) ||
		errors.Is(err, ErrInvalidOperation)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrFlowVersionNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		operations.IsStepNotFound(err)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return operations.IsLocked(err)
}

// IsUnprocessableError checks if an operation was well-formed but violates
// the structure of the flow, which should return HTTP 422.
func IsUnprocessableError(err error) bool {
	return operations.IsInvalid(err) && !operations.IsLocked(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// stepPathError maps journal resolution failures to a validation error.
func stepPathError(op string, err error) error {
	if errors.Is(err, execution.ErrScopeNotFound) ||
		errors.Is(err, execution.ErrNotLoopStep) ||
		errors.Is(err, execution.ErrIterationNotFound) ||
		errors.Is(err, execution.ErrNilIteration) {
		return &ServiceError{Op: op, Code: "INVALID_STEP_PATH", Message: err.Error(), Err: errors.Join(ErrInvalidStepPath, err)}
	}

	return err
}
