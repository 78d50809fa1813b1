// Standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found under the given tenant.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found under the given tenant.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrWorkflowAlreadyExists indicates the workflow name is taken within the tenant.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrVersionConflict indicates an execution update lost an optimistic
	// concurrency race and should be re-read before retrying.
	ErrVersionConflict = errors.New("execution version conflict")

	// ErrExecutionTerminal indicates an update targeted an execution that has
	// already reached a terminal status.
	ErrExecutionTerminal = errors.New("execution already terminal")
)

// WorkflowError wraps workflow-related errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g. "Create", "Update", "Delete")
	WorkflowID string
	TenantID   string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s (tenant %s): %v", e.Op, e.WorkflowID, e.TenantID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a workflow error with context.
func NewWorkflowError(op, workflowID, tenantID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, TenantID: tenantID, Err: err}
}

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	TenantID    string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s (tenant %s): %v", e.Op, e.ExecutionID, e.TenantID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates an execution error with context.
func NewExecutionError(op, executionID, tenantID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, TenantID: tenantID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsVersionConflict checks if an error indicates a lost concurrency race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
