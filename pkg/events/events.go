// Package events defines the lifecycle notifications the engine emits while
// dispatching and running workflow executions. Callers observe terminal state
// transitions through these events or by polling the store.
package events

import (
	"time"

	"github.com/fieldline/slaflow/pkg/models"
)

type EventType string

// Topic carries every execution lifecycle event.
const Topic = "slaflow.executions"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowTriggeredEvent  EventType = "workflow.triggered"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionRetryingEvent  EventType = "execution.retrying"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	TenantID   string    `json:"tenant_id"`
	WorkflowID string    `json:"workflow_id"`
}

type WorkflowTriggered struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	EventType   string         `json:"trigger_event_type"`
	EventData   map[string]any `json:"event_data,omitempty"`
}

func (e WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID     string        `json:"execution_id"`
	ExecutedActions []string      `json:"executed_actions"`
	Duration        time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	WillRetry   bool          `json:"will_retry"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type ExecutionRetrying struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	RetryCount  int           `json:"retry_count"`
	Delay       time.Duration `json:"delay"`
}

func (e ExecutionRetrying) GetType() EventType {
	return ExecutionRetryingEvent
}

// FromExecution fills the shared event fields from an execution record.
func FromExecution(id string, eventType EventType, execution *models.Execution) BaseEvent {
	return BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		TenantID:   execution.TenantID,
		WorkflowID: execution.WorkflowID,
	}
}
