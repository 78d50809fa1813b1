package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotEligible is returned by ExecuteWorkflow when the definition's triggers
// do not admit the event. No execution record is created.
var ErrNotEligible = errors.New("workflow not eligible for event")

// ValidationError reports every structural problem found in a definition at
// create or update time. Nothing is persisted when it is returned.
type ValidationError struct {
	WorkflowName string
	Reasons      []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %q is invalid: %s", e.WorkflowName, strings.Join(e.Reasons, "; "))
}

// ContextValidationError reports an execution context that must not run:
// missing correlation ids, tenant mismatch, or circular execution. It is
// raised before any execution record exists.
type ContextValidationError struct {
	WorkflowID string
	Reason     string
}

func (e *ContextValidationError) Error() string {
	return fmt.Sprintf("execution context rejected for workflow %s: %s", e.WorkflowID, e.Reason)
}
