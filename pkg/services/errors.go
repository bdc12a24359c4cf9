// Package services provides the business logic between the HTTP layer and
// persistence, plus standardized error types for service operations.
package services

import (
	"errors"
	"fmt"

	"github.com/flowgate/flowgate/pkg/n8n"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInstanceNameRequired   = errors.New("instance name is required")
	ErrInstanceURLRequired    = errors.New("instance URL is required")
	ErrInstanceAPIKeyRequired = errors.New("instance API key is required")
	ErrDashboardNameRequired  = errors.New("dashboard name is required")
	ErrDashboardTargetInvalid = errors.New("dashboard must reference a workflow and an instance")
	ErrInputSchemaViolation   = errors.New("input data does not match the dashboard schema")

	// Business logic conflicts (409/422).
	ErrCredentialsRejected = errors.New("instance credentials were rejected by the remote API")

	// Not found errors (404), re-exported so callers depend on one package.
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
	ErrInstanceNotFound  = persistence.ErrInstanceNotFound
	ErrDashboardNotFound = persistence.ErrDashboardNotFound
	ErrWorkflowNotFound  = n8n.ErrWorkflowNotFound
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

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInstanceNameRequired) ||
		errors.Is(err, ErrInstanceURLRequired) ||
		errors.Is(err, ErrInstanceAPIKeyRequired) ||
		errors.Is(err, ErrDashboardNameRequired) ||
		errors.Is(err, ErrDashboardTargetInvalid) ||
		errors.Is(err, ErrInputSchemaViolation)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 422.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCredentialsRejected)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrInstanceNotFound) ||
		errors.Is(err, ErrDashboardNotFound) ||
		errors.Is(err, ErrWorkflowNotFound)
}
