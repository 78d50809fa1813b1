// Package persistence defines the durable storage contract for workflow
// definitions and execution records. Every operation is scoped by tenant id;
// an id that exists under another tenant is simply not found.
package persistence

import (
	"context"
	"time"

	"github.com/fieldline/slaflow/pkg/models"
)

// WorkflowPatch is a partial update of a definition. Nil fields are left
// unchanged; trigger and action lists are replaced wholesale when present.
type WorkflowPatch struct {
	Name        *string
	Description *string
	IsActive    *bool
	Triggers    []*models.Trigger
	Actions     []*models.Action
	Metadata    map[string]any
}

// ExecutionPatch is a partial update of an execution record. A single patch
// carrying both AppendExecutedAction and status fields must be applied
// atomically, so a checkpoint is never visible half-written.
type ExecutionPatch struct {
	Status               *models.ExecutionStatus
	AppendExecutedAction *string
	RetryCount           *int
	Error                *string
	CompletedAt          *time.Time
}

// Stats summarizes the execution history of one workflow.
type Stats struct {
	TotalExecutions        int        `json:"total_executions"`
	SuccessfulExecutions   int        `json:"successful_executions"`
	FailedExecutions       int        `json:"failed_executions"`
	AverageExecutionTimeMs int64      `json:"average_execution_time_ms"`
	LastExecutionAt        *time.Time `json:"last_execution_at,omitempty"`
}

// Store is the engine's only shared mutable resource. Implementations must
// make each mutation atomic from the caller's perspective; stores used from
// multiple processes additionally guard execution updates with the record's
// Version (optimistic concurrency).
type Store interface {
	// Create persists a new definition. Fails with ErrWorkflowAlreadyExists
	// when the name is taken within the tenant.
	Create(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id, tenantID string) (*models.Workflow, error)
	WorkflowsByTenant(ctx context.Context, tenantID string) ([]*models.Workflow, error)
	// ActiveWorkflows returns only isActive definitions, oldest first.
	ActiveWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error)
	// Update re-checks name uniqueness when the patch renames the workflow.
	Update(ctx context.Context, id, tenantID string, patch WorkflowPatch) (*models.Workflow, error)
	// Delete removes the definition only; past executions remain readable.
	Delete(ctx context.Context, id, tenantID string) (bool, error)

	// CreateExecution initializes a pending record with no executed actions.
	CreateExecution(ctx context.Context, workflowID, tenantID, triggeredBy string, ectx models.ExecutionContext) (*models.Execution, error)
	UpdateExecution(ctx context.Context, id, tenantID string, patch ExecutionPatch) (*models.Execution, error)
	ExecutionByID(ctx context.Context, id, tenantID string) (*models.Execution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID, tenantID string) ([]*models.Execution, error)
	// PendingExecutions returns records still in flight (pending or running).
	PendingExecutions(ctx context.Context, tenantID string) ([]*models.Execution, error)
	WorkflowStats(ctx context.Context, workflowID, tenantID string) (*Stats, error)
	// CleanupOldExecutions deletes terminal executions past the retention
	// window and reports how many were removed.
	CleanupOldExecutions(ctx context.Context, tenantID string, olderThan time.Duration) (int, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
