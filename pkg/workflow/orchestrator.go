package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldline/slaflow/pkg/actions"
	"github.com/fieldline/slaflow/pkg/eventbus"
	"github.com/fieldline/slaflow/pkg/events"
	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/otelhelper"
	"github.com/fieldline/slaflow/pkg/persistence"
	"github.com/fieldline/slaflow/pkg/template"
)

// errCancelled signals external cancellation observed mid-run. The execution
// keeps status cancelled, never failed.
var errCancelled = errors.New("execution cancelled externally")

// Orchestrator drives one execution through its state machine: running, the
// checkpointed action loop, then completed or failed with retry re-entry.
// Suspension points (per-action delays, retry backoff) sleep cooperatively and
// re-read the record so an external cancellation aborts the remaining actions.
type Orchestrator struct {
	store     persistence.Store
	executor  *actions.Executor
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer

	// test seams
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewOrchestrator creates an orchestrator. The publisher may be nil, in which
// case lifecycle events are not emitted.
func NewOrchestrator(store persistence.Store, executor *actions.Executor, publisher eventbus.EventPublisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		executor:  executor,
		publisher: publisher,
		logger:    logger.With("module", "orchestrator"),
		tracer:    otel.Tracer("slaflow/workflow"),
		sleep:     sleepContext,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a pending (or resumed) execution record against its workflow
// definition and returns the terminal record. Action failures are persisted on
// the record before any retry decision; the returned error is the final action
// error when the execution ends failed, nil when it completes or is cancelled.
func (o *Orchestrator) Run(ctx context.Context, workflow *models.Workflow, execution *models.Execution) (*models.Execution, error) {
	logger := o.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
		"tenant_id", execution.TenantID,
	)

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.TenantIDKey, execution.TenantID),
		attribute.String(otelhelper.TicketIDKey, execution.Context.TicketID),
	)
	defer span.End()

	start := o.now()

	execution, err := o.transition(ctx, execution, models.ExecutionRunning)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Execution started")
	o.publish(ctx, execution, events.ExecutionStarted{
		BaseEvent:   events.FromExecution(uuid.NewString(), events.ExecutionStartedEvent, execution),
		ExecutionID: execution.ID,
	})

	for {
		execution, err = o.runActions(ctx, logger, workflow, execution)
		if err == nil {
			return o.complete(ctx, logger, execution, start)
		}

		if errors.Is(err, errCancelled) {
			logger.InfoContext(ctx, "Execution cancelled, aborting remaining actions")
			o.publish(ctx, execution, events.ExecutionCancelled{
				BaseEvent:   events.FromExecution(uuid.NewString(), events.ExecutionCancelledEvent, execution),
				ExecutionID: execution.ID,
			})

			return execution, nil
		}

		// A torn-down context is a process-level stop, not an execution
		// failure: leave the record in flight so a restart resumes it from
		// the last checkpoint.
		if ctx.Err() != nil {
			return execution, err
		}

		execution, err = o.fail(ctx, logger, execution, start, err)
		if execution == nil || err == nil {
			return execution, err
		}

		decision := ShouldRetry(execution, err)
		if !decision.Retry {
			logger.WarnContext(ctx, "Execution failed terminally", "error", err, "retry_count", execution.RetryCount)

			return execution, err
		}

		execution, err = o.reenter(ctx, logger, execution, decision)
		if errors.Is(err, errCancelled) {
			return execution, nil
		}

		if err != nil {
			return execution, err
		}
	}
}

// runActions executes the not-yet-checkpointed actions in order. Before every
// action, and again after every delay, the record is re-read so external
// cancellation wins over forward progress.
func (o *Orchestrator) runActions(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, execution *models.Execution) (*models.Execution, error) {
	for _, action := range workflow.NextActions(execution.ExecutedActions) {
		fresh, err := o.refresh(ctx, execution)
		if err != nil {
			return latest(execution, fresh), err
		}

		execution = fresh

		if delay := actions.DefaultDelay(action, execution.Context); delay > 0 {
			logger.InfoContext(ctx, "Suspending before action", "action_id", action.ID, "delay", delay)

			if err := o.sleep(ctx, delay); err != nil {
				return execution, err
			}

			if fresh, err = o.refresh(ctx, execution); err != nil {
				return latest(execution, fresh), err
			}

			execution = fresh
		}

		prepared := *action
		prepared.Parameters = template.Interpolate(action.Parameters, execution.Context)

		actionCtx, actionSpan := otelhelper.StartSpan(ctx, o.tracer, "workflow.action",
			attribute.String(otelhelper.ActionIDKey, action.ID),
			attribute.String(otelhelper.ActionTypeKey, string(action.Type)),
		)

		err = o.executor.Execute(actionCtx, &prepared, execution.Context)
		if err != nil {
			otelhelper.SetError(actionSpan, err)
			actionSpan.End()

			return execution, err
		}

		actionSpan.End()

		// Checkpoint immediately so a crash or retry never repeats this
		// action.
		actionID := action.ID

		execution, err = o.store.UpdateExecution(ctx, execution.ID, execution.TenantID, persistence.ExecutionPatch{
			AppendExecutedAction: &actionID,
		})
		if err != nil {
			return execution, err
		}
	}

	return execution, nil
}

// latest prefers the re-read record over the stale one when the refresh
// managed to return it alongside an error.
func latest(stale, fresh *models.Execution) *models.Execution {
	if fresh != nil {
		return fresh
	}

	return stale
}

// refresh re-reads the record, surfacing external cancellation as errCancelled.
func (o *Orchestrator) refresh(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	fresh, err := o.store.ExecutionByID(ctx, execution.ID, execution.TenantID)
	if err != nil {
		return nil, err
	}

	if fresh.Status == models.ExecutionCancelled {
		return fresh, errCancelled
	}

	return fresh, nil
}

func (o *Orchestrator) complete(ctx context.Context, logger *slog.Logger, execution *models.Execution, start time.Time) (*models.Execution, error) {
	now := o.now()
	status := models.ExecutionCompleted

	execution, err := o.store.UpdateExecution(ctx, execution.ID, execution.TenantID, persistence.ExecutionPatch{
		Status:      &status,
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Execution completed", "executed_actions", len(execution.ExecutedActions))
	o.publish(ctx, execution, events.ExecutionCompleted{
		BaseEvent:       events.FromExecution(uuid.NewString(), events.ExecutionCompletedEvent, execution),
		ExecutionID:     execution.ID,
		ExecutedActions: execution.ExecutedActions,
		Duration:        now.Sub(start),
	})

	return execution, nil
}

// fail persists the failure on the record before any retry decision is made,
// so history stays queryable even for retried attempts. The incoming action
// error is passed back for the retry policy.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, execution *models.Execution, start time.Time, actionErr error) (*models.Execution, error) {
	now := o.now()
	status := models.ExecutionFailed
	message := actionErr.Error()

	execution, err := o.store.UpdateExecution(ctx, execution.ID, execution.TenantID, persistence.ExecutionPatch{
		Status:      &status,
		Error:       &message,
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	willRetry := ShouldRetry(execution, actionErr).Retry

	logger.WarnContext(ctx, "Execution failed", "error", actionErr, "will_retry", willRetry)
	o.publish(ctx, execution, events.ExecutionFailed{
		BaseEvent:   events.FromExecution(uuid.NewString(), events.ExecutionFailedEvent, execution),
		ExecutionID: execution.ID,
		Error:       message,
		WillRetry:   willRetry,
		Duration:    now.Sub(start),
	})

	return execution, actionErr
}

// reenter bumps the retry counter, waits out the backoff, and re-opens the
// execution as running. Cancellation during the backoff aborts the retry.
func (o *Orchestrator) reenter(ctx context.Context, logger *slog.Logger, execution *models.Execution, decision RetryDecision) (*models.Execution, error) {
	retryCount := execution.RetryCount + 1
	status := models.ExecutionRunning

	execution, err := o.store.UpdateExecution(ctx, execution.ID, execution.TenantID, persistence.ExecutionPatch{
		Status:     &status,
		RetryCount: &retryCount,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Retrying execution", "retry_count", retryCount, "delay", decision.Delay)
	o.publish(ctx, execution, events.ExecutionRetrying{
		BaseEvent:   events.FromExecution(uuid.NewString(), events.ExecutionRetryingEvent, execution),
		ExecutionID: execution.ID,
		RetryCount:  retryCount,
		Delay:       decision.Delay,
	})

	if err := o.sleep(ctx, decision.Delay); err != nil {
		return execution, err
	}

	fresh, err := o.refresh(ctx, execution)
	if errors.Is(err, errCancelled) {
		o.publish(ctx, fresh, events.ExecutionCancelled{
			BaseEvent:   events.FromExecution(uuid.NewString(), events.ExecutionCancelledEvent, fresh),
			ExecutionID: fresh.ID,
		})

		return fresh, errCancelled
	}

	if err != nil {
		return execution, err
	}

	return fresh, nil
}

// transition applies a bare status change.
func (o *Orchestrator) transition(ctx context.Context, execution *models.Execution, status models.ExecutionStatus) (*models.Execution, error) {
	return o.store.UpdateExecution(ctx, execution.ID, execution.TenantID, persistence.ExecutionPatch{Status: &status})
}

func (o *Orchestrator) publish(ctx context.Context, execution *models.Execution, event eventbus.Event) {
	if o.publisher == nil || execution == nil {
		return
	}

	if err := o.publisher.Publish(ctx, execution.WorkflowID, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish execution event", "event_type", event.GetType(), "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
