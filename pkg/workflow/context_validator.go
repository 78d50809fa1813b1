package workflow

import (
	"fmt"

	"github.com/fieldline/slaflow/pkg/models"
)

// ValidateContext rejects an execution context before any record is created.
// It requires the ticket and tenant correlation ids, enforces tenant isolation
// against the definition, and blocks circular execution: a workflow whose id
// is already in the context's execution chain must not re-enter itself through
// chained actions.
func ValidateContext(workflow *models.Workflow, ectx models.ExecutionContext) error {
	if ectx.TicketID == "" {
		return &ContextValidationError{WorkflowID: workflow.ID, Reason: "missing ticket id"}
	}

	if ectx.TenantID == "" {
		return &ContextValidationError{WorkflowID: workflow.ID, Reason: "missing tenant id"}
	}

	if ectx.TenantID != workflow.TenantID {
		return &ContextValidationError{
			WorkflowID: workflow.ID,
			Reason:     fmt.Sprintf("tenant %s does not own this workflow", ectx.TenantID),
		}
	}

	if ectx.InChain(workflow.ID) {
		return &ContextValidationError{WorkflowID: workflow.ID, Reason: "circular execution detected"}
	}

	return nil
}
