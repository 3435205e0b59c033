// Package persistence defines the flow version and run journal stores.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrFlowVersionNotFound indicates no flow version exists with the given id.
	ErrFlowVersionNotFound = errors.New("flow version not found")

	// ErrJournalNotFound indicates no journal was recorded for the given run.
	ErrJournalNotFound = errors.New("journal not found")

	// ErrUnsupportedScheme indicates a store URL whose scheme has no implementation.
	ErrUnsupportedScheme = errors.New("unsupported persistence scheme")
)

// FlowVersionError wraps flow version errors with the failed operation.
type FlowVersionError struct {
	Op            string
	FlowVersionID string
	Err           error
}

func (e *FlowVersionError) Error() string {
	return fmt.Sprintf("%s failed for flow version %s: %v", e.Op, e.FlowVersionID, e.Err)
}

func (e *FlowVersionError) Unwrap() error {
	return e.Err
}

func (e *FlowVersionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewFlowVersionError(op, id string, err error) *FlowVersionError {
	return &FlowVersionError{Op: op, FlowVersionID: id, Err: err}
}

// JournalError wraps journal errors with the failed operation.
type JournalError struct {
	Op    string
	RunID string
	Err   error
}

func (e *JournalError) Error() string {
	return fmt.Sprintf("%s failed for journal of run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *JournalError) Unwrap() error {
	return e.Err
}

func (e *JournalError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewJournalError(op, runID string, err error) *JournalError {
	return &JournalError{Op: op, RunID: runID, Err: err}
}

func IsFlowVersionNotFound(err error) bool {
	return errors.Is(err, ErrFlowVersionNotFound)
}

func IsJournalNotFound(err error) bool {
	return errors.Is(err, ErrJournalNotFound)
}
