// Package memory provides an in-memory Store implementation. It backs unit
// tests and local development; all guarantees of the Store contract (tenant
// scoping, atomic patches, version checks) hold under a single mutex.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/persistence"
)

// Store keeps definitions and executions in maps keyed by id. Values are
// deep-copied on the way in and out so callers can never mutate stored state
// behind the lock.
type Store struct {
	mu         sync.RWMutex
	workflows  map[string]*models.Workflow
	executions map[string]*models.Execution
	now        func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		workflows:  make(map[string]*models.Workflow),
		executions: make(map[string]*models.Execution),
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Create(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.workflows {
		if existing.TenantID == workflow.TenantID && strings.EqualFold(existing.Name, workflow.Name) {
			return persistence.NewWorkflowError("Create", workflow.ID, workflow.TenantID, persistence.ErrWorkflowAlreadyExists)
		}
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := s.now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	s.workflows[workflow.ID] = copyWorkflow(workflow)

	return nil
}

func (s *Store) WorkflowByID(_ context.Context, id, tenantID string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, ok := s.workflows[id]
	if !ok || workflow.TenantID != tenantID {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, tenantID, persistence.ErrWorkflowNotFound)
	}

	return copyWorkflow(workflow), nil
}

func (s *Store) WorkflowsByTenant(_ context.Context, tenantID string) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectWorkflows(tenantID, false), nil
}

func (s *Store) ActiveWorkflows(_ context.Context, tenantID string) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectWorkflows(tenantID, true), nil
}

// collectWorkflows returns tenant workflows oldest-first. Callers hold the lock.
func (s *Store) collectWorkflows(tenantID string, activeOnly bool) []*models.Workflow {
	matched := make([]*models.Workflow, 0)

	for _, workflow := range s.workflows {
		if workflow.TenantID != tenantID {
			continue
		}

		if activeOnly && !workflow.IsActive {
			continue
		}

		matched = append(matched, copyWorkflow(workflow))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return matched
}

func (s *Store) Update(_ context.Context, id, tenantID string, patch persistence.WorkflowPatch) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, ok := s.workflows[id]
	if !ok || workflow.TenantID != tenantID {
		return nil, persistence.NewWorkflowError("Update", id, tenantID, persistence.ErrWorkflowNotFound)
	}

	if patch.Name != nil && !strings.EqualFold(*patch.Name, workflow.Name) {
		for _, existing := range s.workflows {
			if existing.ID != id && existing.TenantID == tenantID && strings.EqualFold(existing.Name, *patch.Name) {
				return nil, persistence.NewWorkflowError("Update", id, tenantID, persistence.ErrWorkflowAlreadyExists)
			}
		}
	}

	updated := copyWorkflow(workflow)
	applyWorkflowPatch(updated, patch)
	updated.UpdatedAt = s.now()

	s.workflows[id] = updated

	return copyWorkflow(updated), nil
}

func (s *Store) Delete(_ context.Context, id, tenantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, ok := s.workflows[id]
	if !ok || workflow.TenantID != tenantID {
		return false, nil
	}

	// Executions are historical facts; deleting the definition keeps them.
	delete(s.workflows, id)

	return true, nil
}

func (s *Store) CreateExecution(_ context.Context, workflowID, tenantID, triggeredBy string, ectx models.ExecutionContext) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution := &models.Execution{
		ID:              uuid.New().String(),
		WorkflowID:      workflowID,
		TenantID:        tenantID,
		TriggeredBy:     triggeredBy,
		TriggeredAt:     s.now(),
		Status:          models.ExecutionPending,
		Context:         ectx,
		ExecutedActions: []string{},
		Version:         1,
	}

	s.executions[execution.ID] = copyExecution(execution)

	return execution, nil
}

func (s *Store) UpdateExecution(_ context.Context, id, tenantID string, patch persistence.ExecutionPatch) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, ok := s.executions[id]
	if !ok || execution.TenantID != tenantID {
		return nil, persistence.NewExecutionError("UpdateExecution", id, tenantID, persistence.ErrExecutionNotFound)
	}

	updated := copyExecution(execution)
	applyExecutionPatch(updated, patch)
	updated.Version++

	s.executions[id] = updated

	return copyExecution(updated), nil
}

func (s *Store) ExecutionByID(_ context.Context, id, tenantID string) (*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, ok := s.executions[id]
	if !ok || execution.TenantID != tenantID {
		return nil, persistence.NewExecutionError("ExecutionByID", id, tenantID, persistence.ErrExecutionNotFound)
	}

	return copyExecution(execution), nil
}

func (s *Store) ExecutionsByWorkflow(_ context.Context, workflowID, tenantID string) ([]*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Execution, 0)

	for _, execution := range s.executions {
		if execution.WorkflowID == workflowID && execution.TenantID == tenantID {
			matched = append(matched, copyExecution(execution))
		}
	}

	sortExecutions(matched)

	return matched, nil
}

func (s *Store) PendingExecutions(_ context.Context, tenantID string) ([]*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Execution, 0)

	for _, execution := range s.executions {
		if execution.TenantID != tenantID {
			continue
		}

		if execution.Status == models.ExecutionPending || execution.Status == models.ExecutionRunning {
			matched = append(matched, copyExecution(execution))
		}
	}

	sortExecutions(matched)

	return matched, nil
}

func (s *Store) WorkflowStats(_ context.Context, workflowID, tenantID string) (*persistence.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &persistence.Stats{}

	var totalDuration time.Duration

	var timed int

	for _, execution := range s.executions {
		if execution.WorkflowID != workflowID || execution.TenantID != tenantID {
			continue
		}

		stats.TotalExecutions++

		switch execution.Status {
		case models.ExecutionCompleted:
			stats.SuccessfulExecutions++
		case models.ExecutionFailed:
			stats.FailedExecutions++
		}

		if stats.LastExecutionAt == nil || execution.TriggeredAt.After(*stats.LastExecutionAt) {
			triggeredAt := execution.TriggeredAt
			stats.LastExecutionAt = &triggeredAt
		}

		if execution.CompletedAt != nil {
			totalDuration += execution.CompletedAt.Sub(execution.TriggeredAt)
			timed++
		}
	}

	if timed > 0 {
		stats.AverageExecutionTimeMs = totalDuration.Milliseconds() / int64(timed)
	}

	return stats, nil
}

func (s *Store) CleanupOldExecutions(_ context.Context, tenantID string, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	removed := 0

	for id, execution := range s.executions {
		if execution.TenantID != tenantID || !execution.Status.Terminal() {
			continue
		}

		if execution.CompletedAt != nil && execution.CompletedAt.Before(cutoff) {
			delete(s.executions, id)

			removed++
		}
	}

	return removed, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func sortExecutions(executions []*models.Execution) {
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].TriggeredAt.Before(executions[j].TriggeredAt)
	})
}

func applyWorkflowPatch(workflow *models.Workflow, patch persistence.WorkflowPatch) {
	if patch.Name != nil {
		workflow.Name = *patch.Name
	}

	if patch.Description != nil {
		workflow.Description = *patch.Description
	}

	if patch.IsActive != nil {
		workflow.IsActive = *patch.IsActive
	}

	if patch.Triggers != nil {
		workflow.Triggers = patch.Triggers
	}

	if patch.Actions != nil {
		workflow.Actions = patch.Actions
	}

	if patch.Metadata != nil {
		workflow.Metadata = patch.Metadata
	}
}

func applyExecutionPatch(execution *models.Execution, patch persistence.ExecutionPatch) {
	if patch.Status != nil {
		execution.Status = *patch.Status
	}

	if patch.AppendExecutedAction != nil {
		execution.ExecutedActions = append(execution.ExecutedActions, *patch.AppendExecutedAction)
	}

	if patch.RetryCount != nil {
		execution.RetryCount = *patch.RetryCount
	}

	if patch.Error != nil {
		execution.Error = *patch.Error
	}

	if patch.CompletedAt != nil {
		completedAt := *patch.CompletedAt
		execution.CompletedAt = &completedAt
	}
}

func copyWorkflow(workflow *models.Workflow) *models.Workflow {
	clone := *workflow

	clone.Triggers = make([]*models.Trigger, len(workflow.Triggers))
	for i, trigger := range workflow.Triggers {
		t := *trigger
		t.Conditions = append([]models.Condition(nil), trigger.Conditions...)

		if trigger.Schedule != nil {
			schedule := *trigger.Schedule
			t.Schedule = &schedule
		}

		clone.Triggers[i] = &t
	}

	clone.Actions = make([]*models.Action, len(workflow.Actions))
	for i, action := range workflow.Actions {
		a := *action
		a.Parameters = copyMap(action.Parameters)
		clone.Actions[i] = &a
	}

	clone.Metadata = copyMap(workflow.Metadata)

	return &clone
}

func copyExecution(execution *models.Execution) *models.Execution {
	clone := *execution
	clone.ExecutedActions = append([]string(nil), execution.ExecutedActions...)
	clone.Context.Data = copyMap(execution.Context.Data)
	clone.Context.ExecutionChain = append([]string(nil), execution.Context.ExecutionChain...)

	if execution.CompletedAt != nil {
		completedAt := *execution.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return &clone
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}

	return out
}
