package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/persistence"
)

func testWorkflow(tenantID, name string) *models.Workflow {
	return &models.Workflow{
		TenantID: tenantID,
		Name:     name,
		IsActive: true,
		Triggers: []*models.Trigger{
			{ID: "tr1", Kind: models.TriggerKindConditionBased, Conditions: []models.Condition{
				{Field: "status", Operator: models.OperatorEquals, Value: "breached"},
			}},
		},
		Actions: []*models.Action{
			{ID: "a1", Type: models.ActionNotify, Parameters: map[string]any{"recipients": []any{"a@x.com"}}, Order: 1},
		},
	}
}

func TestStore_CreateEnforcesNameUniquenessPerTenant(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Create(ctx, testWorkflow("tn1", "breach-notify")))

	err := store.Create(ctx, testWorkflow("tn1", "Breach-Notify"))
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrWorkflowAlreadyExists)

	// Same name under another tenant is fine.
	require.NoError(t, store.Create(ctx, testWorkflow("tn2", "breach-notify")))
}

func TestStore_TenantScoping(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	wf := testWorkflow("tn1", "breach-notify")
	require.NoError(t, store.Create(ctx, wf))

	_, err := store.WorkflowByID(ctx, wf.ID, "tn2")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	deleted, err := store.Delete(ctx, wf.ID, "tn2")
	require.NoError(t, err)
	assert.False(t, deleted, "cross-tenant delete must not remove anything")

	found, err := store.WorkflowByID(ctx, wf.ID, "tn1")
	require.NoError(t, err)
	assert.Equal(t, "breach-notify", found.Name)
}

func TestStore_ActiveWorkflowsOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "inactive"} {
		tick := now.Add(time.Duration(i) * time.Minute)
		store.SetClock(func() time.Time { return tick })

		wf := testWorkflow("tn1", name)
		wf.IsActive = name != "inactive"
		require.NoError(t, store.Create(ctx, wf))
	}

	active, err := store.ActiveWorkflows(ctx, "tn1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "first", active[0].Name)
	assert.Equal(t, "second", active[1].Name)
}

func TestStore_UpdateRechecksNameUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first := testWorkflow("tn1", "first")
	second := testWorkflow("tn1", "second")
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	taken := "first"
	_, err := store.Update(ctx, second.ID, "tn1", persistence.WorkflowPatch{Name: &taken})
	assert.ErrorIs(t, err, persistence.ErrWorkflowAlreadyExists)

	fresh := "renamed"
	updated, err := store.Update(ctx, second.ID, "tn1", persistence.WorkflowPatch{Name: &fresh})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
}

func TestStore_ExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	wf := testWorkflow("tn1", "breach-notify")
	require.NoError(t, store.Create(ctx, wf))

	ectx := models.ExecutionContext{TicketID: "t1", TenantID: "tn1"}
	execution, err := store.CreateExecution(ctx, wf.ID, "tn1", "sla-monitor", ectx)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionPending, execution.Status)
	assert.Empty(t, execution.ExecutedActions)
	assert.Equal(t, int64(1), execution.Version)

	running := models.ExecutionRunning
	updated, err := store.UpdateExecution(ctx, execution.ID, "tn1", persistence.ExecutionPatch{Status: &running})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	// Checkpoint and status land in one atomic patch.
	completed := models.ExecutionCompleted
	actionID := "a1"
	completedAt := time.Now()
	updated, err = store.UpdateExecution(ctx, execution.ID, "tn1", persistence.ExecutionPatch{
		Status:               &completed,
		AppendExecutedAction: &actionID,
		CompletedAt:          &completedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, updated.ExecutedActions)
	require.NotNil(t, updated.CompletedAt)

	pending, err := store.PendingExecutions(ctx, "tn1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_WorkflowStats(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	wf := testWorkflow("tn1", "breach-notify")
	require.NoError(t, store.Create(ctx, wf))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	finish := func(status models.ExecutionStatus, triggeredAt time.Time, took time.Duration) {
		store.SetClock(func() time.Time { return triggeredAt })

		execution, err := store.CreateExecution(ctx, wf.ID, "tn1", "sla-monitor", models.ExecutionContext{TicketID: "t1", TenantID: "tn1"})
		require.NoError(t, err)

		completedAt := triggeredAt.Add(took)
		_, err = store.UpdateExecution(ctx, execution.ID, "tn1", persistence.ExecutionPatch{
			Status:      &status,
			CompletedAt: &completedAt,
		})
		require.NoError(t, err)
	}

	finish(models.ExecutionCompleted, base, 100*time.Millisecond)
	finish(models.ExecutionCompleted, base.Add(time.Minute), 300*time.Millisecond)
	finish(models.ExecutionFailed, base.Add(2*time.Minute), 200*time.Millisecond)

	stats, err := store.WorkflowStats(ctx, wf.ID, "tn1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalExecutions)
	assert.Equal(t, 2, stats.SuccessfulExecutions)
	assert.Equal(t, 1, stats.FailedExecutions)
	assert.Equal(t, int64(200), stats.AverageExecutionTimeMs)
	require.NotNil(t, stats.LastExecutionAt)
	assert.Equal(t, base.Add(2*time.Minute), *stats.LastExecutionAt)
}

func TestStore_CleanupOldExecutions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	wf := testWorkflow("tn1", "breach-notify")
	require.NoError(t, store.Create(ctx, wf))

	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	record := func(status models.ExecutionStatus, completedAt time.Time) {
		execution, err := store.CreateExecution(ctx, wf.ID, "tn1", "sla-monitor", models.ExecutionContext{TicketID: "t1", TenantID: "tn1"})
		require.NoError(t, err)

		if status == models.ExecutionPending {
			return
		}

		_, err = store.UpdateExecution(ctx, execution.ID, "tn1", persistence.ExecutionPatch{
			Status:      &status,
			CompletedAt: &completedAt,
		})
		require.NoError(t, err)
	}

	record(models.ExecutionCompleted, now.Add(-40*24*time.Hour)) // past retention
	record(models.ExecutionFailed, now.Add(-10*24*time.Hour))    // inside retention
	record(models.ExecutionPending, time.Time{})                 // in flight, never removed

	store.SetClock(func() time.Time { return now })

	removed, err := store.CleanupOldExecutions(ctx, "tn1", 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := store.ExecutionsByWorkflow(ctx, wf.ID, "tn1")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
