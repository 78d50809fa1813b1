package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/slaflow/pkg/actions"
	"github.com/fieldline/slaflow/pkg/eventbus"
	"github.com/fieldline/slaflow/pkg/events"
	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/persistence"
)

// Engine is the caller-facing surface of the automation core. A host service
// owns transport (HTTP, queues) and hands events to the engine; the engine
// owns validation, trigger matching, priority dispatch, and orchestration.
type Engine struct {
	store        persistence.Store
	validator    *Validator
	orchestrator *Orchestrator
	publisher    eventbus.EventPublisher
	logger       *slog.Logger
	now          func() time.Time
}

// NewEngine wires an engine from its dependencies. The publisher may be nil
// to disable lifecycle events.
func NewEngine(store persistence.Store, collaborators actions.Collaborators, publisher eventbus.EventPublisher, logger *slog.Logger) *Engine {
	executor := actions.NewExecutor(collaborators, logger)

	return &Engine{
		store:        store,
		validator:    NewValidator(),
		orchestrator: NewOrchestrator(store, executor, publisher, logger),
		publisher:    publisher,
		logger:       logger.With("module", "engine"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateWorkflow validates and persists a new definition, all or nothing. Ids
// are assigned to the definition, its triggers, and its actions when absent.
func (e *Engine) CreateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	assignIDs(workflow)

	if err := e.validator.ValidateWorkflow(workflow); err != nil {
		return nil, err
	}

	if err := e.store.Create(ctx, workflow); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Workflow created", "workflow_id", workflow.ID, "tenant_id", workflow.TenantID)

	return workflow, nil
}

// UpdateWorkflow validates the patched definition before persisting anything:
// an update that would leave the definition invalid is rejected whole.
func (e *Engine) UpdateWorkflow(ctx context.Context, id, tenantID string, patch persistence.WorkflowPatch) (*models.Workflow, error) {
	current, err := e.store.WorkflowByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	candidate := patched(current, patch)
	assignIDs(candidate)

	if err := e.validator.ValidateWorkflow(candidate); err != nil {
		return nil, err
	}

	updated, err := e.store.Update(ctx, id, tenantID, patch)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Workflow updated", "workflow_id", id, "tenant_id", tenantID)

	return updated, nil
}

// DeleteWorkflow removes a definition. Execution history stays readable.
func (e *Engine) DeleteWorkflow(ctx context.Context, id, tenantID string) error {
	deleted, err := e.store.Delete(ctx, id, tenantID)
	if err != nil {
		return err
	}

	if !deleted {
		return persistence.NewWorkflowError("Delete", id, tenantID, persistence.ErrWorkflowNotFound)
	}

	e.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id, "tenant_id", tenantID)

	return nil
}

// ExecuteWorkflow is the single-workflow entry point: trigger gate, context
// validation, execution record, orchestrator run. ErrNotEligible means the
// definition's triggers do not admit the event; a *ContextValidationError
// means the context must not run. Neither leaves any record behind.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID, tenantID, triggeredBy, eventType string, eventData map[string]any) (*models.Execution, error) {
	workflow, err := e.store.WorkflowByID(ctx, workflowID, tenantID)
	if err != nil {
		return nil, err
	}

	ectx := contextFromEvent(tenantID, eventData)

	if !ShouldTriggerWorkflow(workflow, eventType, ectx) {
		return nil, ErrNotEligible
	}

	if err := ValidateContext(workflow, ectx); err != nil {
		return nil, err
	}

	execution, err := e.launch(ctx, workflow, tenantID, triggeredBy, eventType, ectx, eventData)
	if err != nil {
		return nil, err
	}

	return e.orchestrator.Run(ctx, workflow, execution)
}

// DispatchEvent fans one event out to every eligible active workflow of the
// tenant. Execution records are created in priority order (escalation first)
// and the orchestrators then run concurrently; independent workflows never
// wait on each other beyond that dispatch point. The returned error joins
// store failures and terminal execution failures; successfully completed
// executions are always in the returned slice regardless.
func (e *Engine) DispatchEvent(ctx context.Context, tenantID, triggeredBy, eventType string, eventData map[string]any) ([]*models.Execution, error) {
	active, err := e.store.ActiveWorkflows(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	ectx := contextFromEvent(tenantID, eventData)

	eligible := make([]*models.Workflow, 0, len(active))

	for _, workflow := range active {
		if ShouldTriggerWorkflow(workflow, eventType, ectx) {
			eligible = append(eligible, workflow)
		}
	}

	type launched struct {
		workflow  *models.Workflow
		execution *models.Execution
	}

	var (
		launches []launched
		errs     []error
	)

	for _, workflow := range Prioritize(eligible, ectx) {
		if err := ValidateContext(workflow, ectx); err != nil {
			e.logger.WarnContext(ctx, "Skipping workflow for event", "workflow_id", workflow.ID, "error", err)

			continue
		}

		execution, err := e.launch(ctx, workflow, tenantID, triggeredBy, eventType, ectx, eventData)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		launches = append(launches, launched{workflow: workflow, execution: execution})
	}

	executions := make([]*models.Execution, len(launches))
	runErrs := make([]error, len(launches))

	var wg sync.WaitGroup

	for i, l := range launches {
		wg.Add(1)

		go func(i int, l launched) {
			defer wg.Done()

			result, err := e.orchestrator.Run(ctx, l.workflow, l.execution)
			if result == nil {
				result = l.execution
			}

			executions[i] = result
			runErrs[i] = err
		}(i, l)
	}

	wg.Wait()

	return executions, errors.Join(append(errs, runErrs...)...)
}

// CancelExecution marks an in-flight execution cancelled. The orchestrator
// observes it at the next suspension point and aborts the remaining actions
// without marking the execution failed.
func (e *Engine) CancelExecution(ctx context.Context, id, tenantID string) (*models.Execution, error) {
	execution, err := e.store.ExecutionByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if execution.Status.Terminal() {
		return nil, persistence.NewExecutionError("CancelExecution", id, tenantID, persistence.ErrExecutionTerminal)
	}

	now := e.now()
	status := models.ExecutionCancelled

	cancelled, err := e.store.UpdateExecution(ctx, id, tenantID, persistence.ExecutionPatch{
		Status:      &status,
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Execution cancelled", "execution_id", id, "tenant_id", tenantID)

	return cancelled, nil
}

// Read-only passthroughs, each tenant-scoped.

func (e *Engine) Workflow(ctx context.Context, id, tenantID string) (*models.Workflow, error) {
	return e.store.WorkflowByID(ctx, id, tenantID)
}

func (e *Engine) Workflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	return e.store.WorkflowsByTenant(ctx, tenantID)
}

func (e *Engine) ActiveWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	return e.store.ActiveWorkflows(ctx, tenantID)
}

func (e *Engine) Execution(ctx context.Context, id, tenantID string) (*models.Execution, error) {
	return e.store.ExecutionByID(ctx, id, tenantID)
}

func (e *Engine) Executions(ctx context.Context, workflowID, tenantID string) ([]*models.Execution, error) {
	return e.store.ExecutionsByWorkflow(ctx, workflowID, tenantID)
}

func (e *Engine) PendingExecutions(ctx context.Context, tenantID string) ([]*models.Execution, error) {
	return e.store.PendingExecutions(ctx, tenantID)
}

func (e *Engine) WorkflowStats(ctx context.Context, workflowID, tenantID string) (*persistence.Stats, error) {
	return e.store.WorkflowStats(ctx, workflowID, tenantID)
}

func (e *Engine) CleanupOldExecutions(ctx context.Context, tenantID string, olderThan time.Duration) (int, error) {
	return e.store.CleanupOldExecutions(ctx, tenantID, olderThan)
}

// launch creates the execution record with the workflow appended to the
// context's execution chain and emits the triggered event.
func (e *Engine) launch(ctx context.Context, workflow *models.Workflow, tenantID, triggeredBy, eventType string, ectx models.ExecutionContext, eventData map[string]any) (*models.Execution, error) {
	execution, err := e.store.CreateExecution(ctx, workflow.ID, tenantID, triggeredBy, ectx.WithWorkflow(workflow.ID))
	if err != nil {
		return nil, err
	}

	if e.publisher != nil {
		event := events.WorkflowTriggered{
			BaseEvent:   events.FromExecution(uuid.NewString(), events.WorkflowTriggeredEvent, execution),
			ExecutionID: execution.ID,
			EventType:   eventType,
			EventData:   eventData,
		}
		if err := e.publisher.Publish(ctx, workflow.ID, event); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish trigger event", "workflow_id", workflow.ID, "error", err)
		}
	}

	return execution, nil
}

// contextFromEvent builds the execution context an event dispatch runs
// against. The correlation ids and the execution chain of the causal sequence
// travel inside the event payload.
func contextFromEvent(tenantID string, eventData map[string]any) models.ExecutionContext {
	ectx := models.ExecutionContext{
		TenantID: tenantID,
		Data:     eventData,
	}

	if eventData == nil {
		return ectx
	}

	if ticketID, ok := eventData["ticket_id"].(string); ok {
		ectx.TicketID = ticketID
	}

	switch chain := eventData["execution_chain"].(type) {
	case []string:
		ectx.ExecutionChain = chain
	case []any:
		for _, entry := range chain {
			if id, ok := entry.(string); ok {
				ectx.ExecutionChain = append(ectx.ExecutionChain, id)
			}
		}
	}

	return ectx
}

// patched builds the definition as it would look after the patch, for
// validation ahead of the store write. Shallow copies are fine: validation
// never mutates.
func patched(current *models.Workflow, patch persistence.WorkflowPatch) *models.Workflow {
	candidate := *current

	if patch.Name != nil {
		candidate.Name = *patch.Name
	}

	if patch.Description != nil {
		candidate.Description = *patch.Description
	}

	if patch.IsActive != nil {
		candidate.IsActive = *patch.IsActive
	}

	if patch.Triggers != nil {
		candidate.Triggers = patch.Triggers
	}

	if patch.Actions != nil {
		candidate.Actions = patch.Actions
	}

	if patch.Metadata != nil {
		candidate.Metadata = patch.Metadata
	}

	return &candidate
}

func assignIDs(workflow *models.Workflow) {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	for _, trigger := range workflow.Triggers {
		if trigger.ID == "" {
			trigger.ID = uuid.NewString()
		}
	}

	for _, action := range workflow.Actions {
		if action.ID == "" {
			action.ID = uuid.NewString()
		}
	}
}
