package workflow

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/slaflow/pkg/actions"
	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/persistence"
	"github.com/fieldline/slaflow/pkg/persistence/memory"
)

func newTestOrchestrator(stub *stubCollaborators, store *memory.Store) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	executor := actions.NewExecutor(actions.Collaborators{
		Notifier:     stub,
		Escalator:    stub,
		Assigner:     stub,
		FieldUpdater: stub,
		SLAClock:     stub,
		TaskCreator:  stub,
	}, logger)

	orchestrator := NewOrchestrator(store, executor, nil, logger)
	orchestrator.sleep = func(context.Context, time.Duration) error { return nil }

	return orchestrator
}

func twoActionWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:       "w1",
		TenantID: "tn1",
		Name:     "two steps",
		IsActive: true,
		Triggers: []*models.Trigger{{Kind: models.TriggerKindConditionBased}},
		Actions: []*models.Action{
			{ID: "a2", Type: models.ActionCreateTask, Parameters: map[string]any{"title": "second"}, Order: 2},
			{ID: "a1", Type: models.ActionNotify, Parameters: map[string]any{"recipients": []any{"a@x.com"}}, Order: 1},
		},
	}
}

func TestOrchestrator_CheckpointedActionsAreNeverRepeated(t *testing.T) {
	ctx := context.Background()
	stub := &stubCollaborators{}
	store := memory.NewStore()
	orchestrator := newTestOrchestrator(stub, store)

	workflow := twoActionWorkflow()

	execution, err := store.CreateExecution(ctx, workflow.ID, "tn1", "dispatcher", models.ExecutionContext{
		TicketID: "t1", TenantID: "tn1",
	})
	require.NoError(t, err)

	// Simulate a previous run that crashed after checkpointing a1.
	checkpoint := "a1"
	execution, err = store.UpdateExecution(ctx, execution.ID, "tn1", persistence.ExecutionPatch{
		AppendExecutedAction: &checkpoint,
	})
	require.NoError(t, err)

	result, err := orchestrator.Run(ctx, workflow, execution)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, result.Status)
	assert.Equal(t, []string{"a1", "a2"}, result.ExecutedActions)
	assert.Equal(t, 0, stub.callCount("notify"), "a1 was already checkpointed")
	assert.Equal(t, 1, stub.callCount("create_task"))
}

func TestOrchestrator_ActionsRunInOrder(t *testing.T) {
	ctx := context.Background()
	stub := &stubCollaborators{}
	store := memory.NewStore()
	orchestrator := newTestOrchestrator(stub, store)

	workflow := twoActionWorkflow()

	execution, err := store.CreateExecution(ctx, workflow.ID, "tn1", "dispatcher", models.ExecutionContext{
		TicketID: "t1", TenantID: "tn1",
	})
	require.NoError(t, err)

	result, err := orchestrator.Run(ctx, workflow, execution)
	require.NoError(t, err)

	// Definition lists a2 first; Order decides execution sequence.
	assert.Equal(t, []string{"a1", "a2"}, result.ExecutedActions)
	assert.Equal(t, []string{"notify", "create_task"}, stub.calls)
}

func TestOrchestrator_CancellationDuringDelayAbortsWithoutFailure(t *testing.T) {
	ctx := context.Background()
	stub := &stubCollaborators{}
	store := memory.NewStore()
	orchestrator := newTestOrchestrator(stub, store)

	workflow := &models.Workflow{
		ID:       "w1",
		TenantID: "tn1",
		Name:     "delayed escalation",
		IsActive: true,
		Triggers: []*models.Trigger{{Kind: models.TriggerKindConditionBased}},
		Actions: []*models.Action{
			{ID: "a1", Type: models.ActionEscalate, Parameters: map[string]any{"level": "l2"}, Order: 1},
		},
	}

	execution, err := store.CreateExecution(ctx, workflow.ID, "tn1", "dispatcher", models.ExecutionContext{
		TicketID: "t1", TenantID: "tn1",
	})
	require.NoError(t, err)

	// The escalate default delay suspends the run; an external actor cancels
	// the execution while it sleeps.
	executionID := execution.ID
	orchestrator.sleep = func(_ context.Context, _ time.Duration) error {
		status := models.ExecutionCancelled

		_, err := store.UpdateExecution(context.Background(), executionID, "tn1", persistence.ExecutionPatch{
			Status: &status,
		})

		return err
	}

	result, err := orchestrator.Run(ctx, workflow, execution)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCancelled, result.Status)
	assert.Empty(t, result.ExecutedActions)
	assert.Equal(t, 0, stub.callCount("escalate"), "cancelled before the action ran")
}

func TestOrchestrator_CancellationBeforeRetryBackoffExpires(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	stub := &stubCollaborators{
		failures: map[string][]error{
			"notify": {actions.Transient(assert.AnError)},
		},
	}
	orchestrator := newTestOrchestrator(stub, store)

	workflow := &models.Workflow{
		ID:       "w1",
		TenantID: "tn1",
		Name:     "notify with retry",
		IsActive: true,
		Triggers: []*models.Trigger{{Kind: models.TriggerKindConditionBased}},
		Actions: []*models.Action{
			{ID: "a1", Type: models.ActionNotify, Parameters: map[string]any{"recipients": []any{"a@x.com"}}, Order: 1},
		},
	}

	execution, err := store.CreateExecution(ctx, workflow.ID, "tn1", "dispatcher", models.ExecutionContext{
		TicketID: "t1", TenantID: "tn1",
	})
	require.NoError(t, err)

	// First sleep is the retry backoff; cancel during it.
	executionID := execution.ID
	orchestrator.sleep = func(_ context.Context, _ time.Duration) error {
		status := models.ExecutionCancelled

		_, err := store.UpdateExecution(context.Background(), executionID, "tn1", persistence.ExecutionPatch{
			Status: &status,
		})

		return err
	}

	result, err := orchestrator.Run(ctx, workflow, execution)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCancelled, result.Status)
	assert.Equal(t, 1, stub.callCount("notify"), "no second attempt after cancellation")
}

func TestOrchestrator_FailureIsPersistedBeforeRetryDecision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	stub := &stubCollaborators{
		failures: map[string][]error{
			"notify": {assert.AnError},
		},
	}
	orchestrator := newTestOrchestrator(stub, store)

	workflow := &models.Workflow{
		ID:       "w1",
		TenantID: "tn1",
		Name:     "notify once",
		IsActive: true,
		Triggers: []*models.Trigger{{Kind: models.TriggerKindConditionBased}},
		Actions: []*models.Action{
			{ID: "a1", Type: models.ActionNotify, Parameters: map[string]any{"recipients": []any{"a@x.com"}}, Order: 1},
		},
	}

	execution, err := store.CreateExecution(ctx, workflow.ID, "tn1", "dispatcher", models.ExecutionContext{
		TicketID: "t1", TenantID: "tn1",
	})
	require.NoError(t, err)

	result, err := orchestrator.Run(ctx, workflow, execution)
	require.Error(t, err)

	stored, storeErr := store.ExecutionByID(ctx, result.ID, "tn1")
	require.NoError(t, storeErr)
	assert.Equal(t, models.ExecutionFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
	assert.NotNil(t, stored.CompletedAt)
}
