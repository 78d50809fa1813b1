package main

import (
	"context"
	"log/slog"

	"github.com/fieldline/slaflow/pkg/actions"
)

// logCollaborators is the stand-in collaborator set the binary ships with: it
// records every intended side effect instead of performing it. Deployments
// integrate real ticket, notification, and task services by replacing this
// set in their own build of the dispatcher.
type logCollaborators struct {
	logger *slog.Logger
}

func newLogCollaborators(logger *slog.Logger) actions.Collaborators {
	c := &logCollaborators{logger: logger.With("module", "collaborators")}

	return actions.Collaborators{
		Notifier:     c,
		Escalator:    c,
		Assigner:     c,
		FieldUpdater: c,
		SLAClock:     c,
		TaskCreator:  c,
	}
}

func (c *logCollaborators) Notify(ctx context.Context, tenantID string, recipients []string, message string) error {
	c.logger.InfoContext(ctx, "Would notify", "tenant_id", tenantID, "recipients", recipients, "message", message)

	return nil
}

func (c *logCollaborators) Escalate(ctx context.Context, tenantID, ticketID, level string) error {
	c.logger.InfoContext(ctx, "Would escalate", "tenant_id", tenantID, "ticket_id", ticketID, "level", level)

	return nil
}

func (c *logCollaborators) Assign(ctx context.Context, tenantID, ticketID, assignee string) error {
	c.logger.InfoContext(ctx, "Would assign", "tenant_id", tenantID, "ticket_id", ticketID, "assignee", assignee)

	return nil
}

func (c *logCollaborators) UpdateField(ctx context.Context, tenantID, ticketID, field string, value any) error {
	c.logger.InfoContext(ctx, "Would update field", "tenant_id", tenantID, "ticket_id", ticketID, "field", field, "value", value)

	return nil
}

func (c *logCollaborators) Pause(ctx context.Context, tenantID, ticketID string) error {
	c.logger.InfoContext(ctx, "Would pause SLA clock", "tenant_id", tenantID, "ticket_id", ticketID)

	return nil
}

func (c *logCollaborators) Resume(ctx context.Context, tenantID, ticketID string) error {
	c.logger.InfoContext(ctx, "Would resume SLA clock", "tenant_id", tenantID, "ticket_id", ticketID)

	return nil
}

func (c *logCollaborators) CreateTask(ctx context.Context, tenantID, ticketID, title, description string) error {
	c.logger.InfoContext(ctx, "Would create task", "tenant_id", tenantID, "ticket_id", ticketID, "title", title, "description", description)

	return nil
}
