// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
	"github.com/dukex/sqlgems/pkg/registry"
)

var (
	// ErrPipelineNotFound is returned when a pipeline is not found.
	ErrPipelineNotFound = persistence.ErrPipelineNotFound

	// ErrComponentNotFound is returned when a node has no component configured.
	ErrComponentNotFound = persistence.ErrComponentNotFound

	// ErrVersionConflict is returned when the pipeline was changed by a concurrent write (409 Conflict).
	ErrVersionConflict = persistence.ErrVersionConflict
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidSortField     = errors.New("invalid sort field")
	ErrInvalidSortOrder     = errors.New("invalid sort order")
	ErrPipelineNameRequired = errors.New("pipeline name is required")
	ErrPipelineNil          = errors.New("pipeline cannot be nil")
	ErrInvalidGraph         = errors.New("invalid pipeline graph")
	ErrGemMismatch          = errors.New("component gem does not match node gem")

	// Lookup Errors (404 Not Found).
	ErrNodeNotFound = errors.New("node not found")

	// Precondition Errors (412 Precondition Failed).
	ErrFingerprintMismatch = errors.New("component fingerprint does not match")

	// Compile refusal (422 Unprocessable Entity).
	ErrComponentInvalid = errors.New("component has error diagnostics")
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

// InvalidComponentError refuses to compile a component and carries the diagnostics why.
type InvalidComponentError struct {
	NodeID      string
	Diagnostics []models.Diagnostic
}

func (e *InvalidComponentError) Error() string {
	errorCount := 0

	for _, d := range e.Diagnostics {
		if d.Severity == models.SeverityError {
			errorCount++
		}
	}

	return fmt.Sprintf("component %s: %s (%d error diagnostic(s))", e.NodeID, ErrComponentInvalid, errorCount)
}

func (e *InvalidComponentError) Unwrap() error {
	return ErrComponentInvalid
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrPipelineNameRequired) ||
		errors.Is(err, ErrPipelineNil) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrGemMismatch) ||
		errors.Is(err, persistence.ErrInvalidPipelineID) ||
		registry.IsInvalidParameters(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPipelineNotFound) ||
		errors.Is(err, ErrComponentNotFound) ||
		errors.Is(err, ErrNodeNotFound) ||
		registry.IsGemNotFound(err)
}

// IsPreconditionError checks if an error should return HTTP 412.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrFingerprintMismatch)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsComponentInvalid checks if an error is a compile refusal.
func IsComponentInvalid(err error) bool {
	return errors.Is(err, ErrComponentInvalid)
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
