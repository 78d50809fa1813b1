// Package actions executes the effects of workflow actions through external
// collaborators. The executor performs side effects and reports typed errors;
// retry decisions belong to the orchestrator, never here.
package actions

import "context"

// Notifier delivers messages to people or channels.
type Notifier interface {
	Notify(ctx context.Context, tenantID string, recipients []string, message string) error
}

// Escalator raises the handling level of a ticket.
type Escalator interface {
	Escalate(ctx context.Context, tenantID, ticketID, level string) error
}

// Assigner routes a ticket to a user or group.
type Assigner interface {
	Assign(ctx context.Context, tenantID, ticketID, assignee string) error
}

// FieldUpdater writes a single field on a ticket record.
type FieldUpdater interface {
	UpdateField(ctx context.Context, tenantID, ticketID, field string, value any) error
}

// SLAClock pauses and resumes the SLA timer of a ticket.
type SLAClock interface {
	Pause(ctx context.Context, tenantID, ticketID string) error
	Resume(ctx context.Context, tenantID, ticketID string) error
}

// TaskCreator opens a follow-up task linked to a ticket.
type TaskCreator interface {
	CreateTask(ctx context.Context, tenantID, ticketID, title, description string) error
}

// Collaborators bundles every external service the executor can touch. All
// real integrations live in the host service; this engine only defines the
// boundary.
type Collaborators struct {
	Notifier     Notifier
	Escalator    Escalator
	Assigner     Assigner
	FieldUpdater FieldUpdater
	SLAClock     SLAClock
	TaskCreator  TaskCreator
}
