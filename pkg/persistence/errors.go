package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates no execution record exists for the run ID.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionAlreadyExists indicates a record with the same run ID already exists.
	ErrExecutionAlreadyExists = errors.New("execution already exists")

	// ErrStaleTransition indicates a status write lost a compare-and-swap: the
	// record exists but its current status no longer permits the transition.
	ErrStaleTransition = errors.New("stale status transition")

	// ErrInstanceNotFound indicates an instance was not found or is inactive.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrDashboardNotFound indicates a dashboard was not found by the given identifier.
	ErrDashboardNotFound = errors.New("dashboard not found")
)

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op    string // Operation being performed (e.g., "Insert", "MarkRunning")
	RunID string // Run ID if applicable
	Err   error  // Underlying error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, runID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:    op,
		RunID: runID,
		Err:   err,
	}
}

// IsExecutionNotFound checks if an error indicates an execution record was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsStaleTransition checks if an error indicates a lost compare-and-swap write.
func IsStaleTransition(err error) bool {
	return errors.Is(err, ErrStaleTransition)
}

// IsInstanceNotFound checks if an error indicates an instance was not found.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsDashboardNotFound checks if an error indicates a dashboard was not found.
func IsDashboardNotFound(err error) bool {
	return errors.Is(err, ErrDashboardNotFound)
}
