// Package workflow contains the automation engine core: trigger matching,
// definition and context validation, the retry policy, priority scheduling,
// the execution orchestrator, and the Engine facade that ties them together.
package workflow

import (
	"time"

	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/schedule"
)

// CanExecute reports whether any trigger of an active definition matches the
// given context at now. Inactive definitions never match.
func CanExecute(workflow *models.Workflow, ectx models.ExecutionContext, now time.Time) bool {
	if !workflow.IsActive {
		return false
	}

	for _, trigger := range workflow.Triggers {
		if triggerMatches(trigger, ectx, now) {
			return true
		}
	}

	return false
}

func triggerMatches(trigger *models.Trigger, ectx models.ExecutionContext, now time.Time) bool {
	switch trigger.Kind {
	case models.TriggerKindTimeBased:
		due, err := schedule.Due(trigger.Schedule, ectx.LastExecutionTime, now)

		return err == nil && due
	case models.TriggerKindEventBased:
		// Event triggers are simple filters: every condition must hold,
		// regardless of the logical operators they carry.
		for _, condition := range trigger.Conditions {
			if !models.Evaluate(condition, ectx.Data) {
				return false
			}
		}

		return true
	case models.TriggerKindConditionBased:
		return models.EvaluateAll(trigger.Conditions, ectx.Data)
	default:
		return false
	}
}

// ShouldTriggerWorkflow is the event-dispatch gate: it admits an active
// definition when some event-based trigger filters on the incoming event type,
// or some condition-based trigger's full evaluation passes on the context.
// This is stricter than CanExecute, which answers the ad-hoc "could this run
// at all" question.
func ShouldTriggerWorkflow(workflow *models.Workflow, eventType string, ectx models.ExecutionContext) bool {
	if !workflow.IsActive {
		return false
	}

	for _, trigger := range workflow.Triggers {
		switch trigger.Kind {
		case models.TriggerKindEventBased:
			if filtersOnEventType(trigger, eventType) {
				return true
			}
		case models.TriggerKindConditionBased:
			if models.EvaluateAll(trigger.Conditions, ectx.Data) {
				return true
			}
		case models.TriggerKindTimeBased:
			// Time-based triggers fire on the scheduler's clock, never on
			// incoming events.
		}
	}

	return false
}

func filtersOnEventType(trigger *models.Trigger, eventType string) bool {
	for _, condition := range trigger.Conditions {
		if condition.Field != "event_type" || condition.Operator != models.OperatorEquals {
			continue
		}

		if value, ok := condition.Value.(string); ok && value == eventType {
			return true
		}
	}

	return false
}
