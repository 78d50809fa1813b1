package models

import "time"

// ExecutionStatus is the state machine of one workflow run:
// pending -> running -> completed | failed, with cancelled reachable from
// pending or running by external cancellation only.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// ExecutionContext is the payload an execution runs against: the correlation
// ids the validator requires, the event data conditions and templates resolve
// into, and the chain of workflow ids already entered within this causal
// sequence (circular-execution prevention).
type ExecutionContext struct {
	TicketID          string         `json:"ticket_id"`
	TenantID          string         `json:"tenant_id"`
	Data              map[string]any `json:"data,omitempty"`
	ExecutionChain    []string       `json:"execution_chain,omitempty"`
	LastExecutionTime time.Time      `json:"last_execution_time,omitempty"`
}

// WithWorkflow returns a copy of the context with id appended to the
// execution chain. The receiver is not mutated.
func (c ExecutionContext) WithWorkflow(id string) ExecutionContext {
	chain := make([]string, 0, len(c.ExecutionChain)+1)
	chain = append(chain, c.ExecutionChain...)
	chain = append(chain, id)
	c.ExecutionChain = chain

	return c
}

// InChain reports whether the workflow id has already been entered in this
// causal sequence.
func (c ExecutionContext) InChain(id string) bool {
	for _, entered := range c.ExecutionChain {
		if entered == id {
			return true
		}
	}

	return false
}

// Execution is one run of a workflow against one triggering event. It is
// mutated in place while running and becomes immutable once terminal.
// ExecutedActions is the checkpoint: action ids already applied, persisted
// after every action so a crashed run resumes without repeating work.
type Execution struct {
	ID              string           `json:"id"`
	WorkflowID      string           `json:"workflow_id"`
	TenantID        string           `json:"tenant_id"`
	TriggeredBy     string           `json:"triggered_by"`
	TriggeredAt     time.Time        `json:"triggered_at"`
	Status          ExecutionStatus  `json:"status"`
	Context         ExecutionContext `json:"context"`
	ExecutedActions []string         `json:"executed_actions"`
	RetryCount      int              `json:"retry_count"`
	Error           string           `json:"error,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`

	// Version supports optimistic concurrency in stores shared between
	// processes. Incremented on every update.
	Version int64 `json:"version"`
}
