package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldline/slaflow/pkg/models"
)

// escalateDefaultDelay gives humans a window to react before an automated
// escalation fires, unless the event is marked critical.
const escalateDefaultDelay = 5 * time.Minute

// Executor dispatches a single action to its collaborator. Parameters are
// expected to be interpolated already.
type Executor struct {
	collaborators Collaborators
	logger        *slog.Logger
}

// NewExecutor creates an executor over the given collaborator set.
func NewExecutor(collaborators Collaborators, logger *slog.Logger) *Executor {
	return &Executor{
		collaborators: collaborators,
		logger:        logger.With("module", "action_executor"),
	}
}

// DefaultDelay computes the pre-execution delay of an action: the explicit
// delay when set, otherwise the type default. Only escalate carries a
// non-zero default, suppressed when the event context is marked critical.
func DefaultDelay(action *models.Action, ectx models.ExecutionContext) time.Duration {
	if action.DelayMs > 0 {
		return time.Duration(action.DelayMs) * time.Millisecond
	}

	if action.Type == models.ActionEscalate {
		if critical, _ := ectx.Data["critical"].(bool); critical {
			return 0
		}

		return escalateDefaultDelay
	}

	return 0
}

// Execute performs one action. The switch is exhaustive over
// models.ActionType: a new action type must be handled here or the default
// branch fails the execution loudly rather than silently skipping it.
func (e *Executor) Execute(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	logger := e.logger.With(
		"action_id", action.ID,
		"action_type", action.Type,
		"tenant_id", ectx.TenantID,
		"ticket_id", ectx.TicketID,
	)

	logger.InfoContext(ctx, "Executing action")

	var err error

	switch action.Type {
	case models.ActionNotify:
		err = e.notify(ctx, action, ectx)
	case models.ActionEscalate:
		err = e.escalate(ctx, action, ectx)
	case models.ActionAssign:
		err = e.assign(ctx, action, ectx)
	case models.ActionUpdateField:
		err = e.updateField(ctx, action, ectx)
	case models.ActionPauseSLA:
		err = e.pauseSLA(ctx, action, ectx)
	case models.ActionResumeSLA:
		err = e.resumeSLA(ctx, action, ectx)
	case models.ActionCreateTask:
		err = e.createTask(ctx, action, ectx)
	default:
		err = NewError(action, fmt.Errorf("unknown action type %q", action.Type))
	}

	if err != nil {
		logger.ErrorContext(ctx, "Action failed", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Action completed")

	return nil
}

func (e *Executor) notify(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	if e.collaborators.Notifier == nil {
		return NewError(action, fmt.Errorf("%w: notifier", ErrCollaboratorNotConfigured))
	}

	recipients, err := stringSliceParam(action, "recipients")
	if err != nil {
		return NewError(action, err)
	}

	message, _ := stringParam(action, "message")

	return e.wrap(action, e.collaborators.Notifier.Notify(ctx, ectx.TenantID, recipients, message))
}

func (e *Executor) escalate(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	if e.collaborators.Escalator == nil {
		return NewError(action, fmt.Errorf("%w: escalator", ErrCollaboratorNotConfigured))
	}

	level, err := stringParam(action, "level")
	if err != nil {
		return NewError(action, err)
	}

	return e.wrap(action, e.collaborators.Escalator.Escalate(ctx, ectx.TenantID, ectx.TicketID, level))
}

func (e *Executor) assign(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	if e.collaborators.Assigner == nil {
		return NewError(action, fmt.Errorf("%w: assigner", ErrCollaboratorNotConfigured))
	}

	assignee, err := stringParam(action, "assignee")
	if err != nil {
		return NewError(action, err)
	}

	return e.wrap(action, e.collaborators.Assigner.Assign(ctx, ectx.TenantID, ectx.TicketID, assignee))
}

func (e *Executor) updateField(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	if e.collaborators.FieldUpdater == nil {
		return NewError(action, fmt.Errorf("%w: field updater", ErrCollaboratorNotConfigured))
	}

	field, err := stringParam(action, "field")
	if err != nil {
		return NewError(action, err)
	}

	value, ok := action.Parameters["value"]
	if !ok {
		return NewError(action, fmt.Errorf("%w: value", ErrMissingParameter))
	}

	return e.wrap(action, e.collaborators.FieldUpdater.UpdateField(ctx, ectx.TenantID, ectx.TicketID, field, value))
}

func (e *Executor) pauseSLA(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	if e.collaborators.SLAClock == nil {
		return NewError(action, fmt.Errorf("%w: sla clock", ErrCollaboratorNotConfigured))
	}

	return e.wrap(action, e.collaborators.SLAClock.Pause(ctx, ectx.TenantID, ectx.TicketID))
}

func (e *Executor) resumeSLA(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	if e.collaborators.SLAClock == nil {
		return NewError(action, fmt.Errorf("%w: sla clock", ErrCollaboratorNotConfigured))
	}

	return e.wrap(action, e.collaborators.SLAClock.Resume(ctx, ectx.TenantID, ectx.TicketID))
}

func (e *Executor) createTask(ctx context.Context, action *models.Action, ectx models.ExecutionContext) error {
	if e.collaborators.TaskCreator == nil {
		return NewError(action, fmt.Errorf("%w: task creator", ErrCollaboratorNotConfigured))
	}

	title, err := stringParam(action, "title")
	if err != nil {
		return NewError(action, err)
	}

	description, _ := stringParam(action, "description")

	return e.wrap(action, e.collaborators.TaskCreator.CreateTask(ctx, ectx.TenantID, ectx.TicketID, title, description))
}

// wrap converts a collaborator failure into a typed action error, preserving
// the transient marker when the collaborator set one.
func (e *Executor) wrap(action *models.Action, err error) error {
	if err == nil {
		return nil
	}

	if IsTransient(err) {
		return NewTransientError(action, err)
	}

	return NewError(action, err)
}

func stringParam(action *models.Action, key string) (string, error) {
	value, ok := action.Parameters[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, key)
	}

	str, ok := value.(string)
	if !ok || str == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrMissingParameter, key)
	}

	return str, nil
}

func stringSliceParam(action *models.Action, key string) ([]string, error) {
	value, ok := action.Parameters[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameter, key)
	}

	switch v := value.(type) {
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrMissingParameter, key)
		}

		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrMissingParameter, key)
		}

		out := make([]string, 0, len(v))

		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must contain only strings", ErrMissingParameter, key)
			}

			out = append(out, str)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings", ErrMissingParameter, key)
	}
}
