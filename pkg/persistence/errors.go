// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
	"strings"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrPipelineNotFound indicates a pipeline was not found by the given identifier.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrComponentNotFound indicates a pipeline has no component for the given node.
	ErrComponentNotFound = errors.New("component not found")

	// ErrInvalidPipelineID indicates an identifier that cannot be used as a storage key.
	ErrInvalidPipelineID = errors.New("invalid pipeline id")

	// ErrVersionConflict indicates the pipeline was saved by someone else since it was read.
	ErrVersionConflict = errors.New("pipeline version conflict")
)

// PipelineError wraps pipeline-related errors with additional context.
type PipelineError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	PipelineID string // Pipeline ID if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *PipelineError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for pipeline %s: %s (%v)", e.Op, e.PipelineID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for pipeline %s: %v", e.Op, e.PipelineID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for pipeline errors.
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPipelineError creates a new pipeline error with context.
func NewPipelineError(op, pipelineID string, err error) *PipelineError {
	return &PipelineError{
		Op:         op,
		PipelineID: pipelineID,
		Err:        err,
	}
}

// ComponentError wraps component-related errors with additional context.
type ComponentError struct {
	Op         string // Operation being performed
	PipelineID string // Pipeline ID
	NodeID     string // Node ID
	Err        error  // Underlying error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("%s operation failed for component %s in pipeline %s: %v", e.Op, e.NodeID, e.PipelineID, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

func (e *ComponentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewComponentError creates a new component error with context.
func NewComponentError(op, pipelineID, nodeID string, err error) *ComponentError {
	return &ComponentError{
		Op:         op,
		PipelineID: pipelineID,
		NodeID:     nodeID,
		Err:        err,
	}
}

// IsPipelineNotFound checks if an error indicates a pipeline was not found.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsComponentNotFound checks if an error indicates a component was not found.
func IsComponentNotFound(err error) bool {
	return errors.Is(err, ErrComponentNotFound)
}

// IsInvalidPipelineID checks if an error indicates an unusable pipeline identifier.
func IsInvalidPipelineID(err error) bool {
	return errors.Is(err, ErrInvalidPipelineID)
}

// IsVersionConflict checks if an error indicates a stale pipeline write.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// NewVersionConflictError reports that the stored version of a pipeline is not the expected one.
func NewVersionConflictError(op, pipelineID string, expected, stored int64) *PipelineError {
	return &PipelineError{
		Op:         op,
		PipelineID: pipelineID,
		Err:        ErrVersionConflict,
		Message:    fmt.Sprintf("expected version %d, stored version %d", expected, stored),
	}
}

// ValidatePipelineID rejects identifiers that cannot be used as file names or storage keys.
func ValidatePipelineID(id string) error {
	switch {
	case id == "":
		return &PipelineError{Op: "Validate", Err: ErrInvalidPipelineID, Message: "empty id"}
	case strings.ContainsAny(id, `/\`) || id == "." || id == "..":
		return &PipelineError{Op: "Validate", PipelineID: id, Err: ErrInvalidPipelineID, Message: "contains a path element"}
	}

	return nil
}
