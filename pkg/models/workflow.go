// Package models defines the core domain model for SLA workflow automation.
package models

import (
	"sort"
	"time"
)

// Workflow is a tenant-scoped automation rule: ordered triggers decide when it
// fires, ordered actions define what it does. Definitions are immutable after
// creation and replaced wholesale on update.
type Workflow struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"   validate:"required"`
	Name        string         `json:"name"        validate:"required,min=1"`
	Description string         `json:"description"`
	IsActive    bool           `json:"is_active"`
	Triggers    []*Trigger     `json:"triggers"    validate:"required,min=1,dive"`
	Actions     []*Action      `json:"actions"     validate:"required,min=1,dive"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NextActions returns the actions not yet checkpointed in executed, sorted
// ascending by Order. This is the resume point after a crash or retry.
func (w *Workflow) NextActions(executed []string) []*Action {
	done := make(map[string]struct{}, len(executed))
	for _, id := range executed {
		done[id] = struct{}{}
	}

	next := make([]*Action, 0, len(w.Actions))

	for _, action := range w.Actions {
		if _, ok := done[action.ID]; !ok {
			next = append(next, action)
		}
	}

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Order < next[j].Order
	})

	return next
}

// HasActionType reports whether any action of the workflow has the given type.
func (w *Workflow) HasActionType(t ActionType) bool {
	for _, action := range w.Actions {
		if action.Type == t {
			return true
		}
	}

	return false
}
