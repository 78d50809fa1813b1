package workflow

import (
	"sort"

	"github.com/fieldline/slaflow/pkg/models"
)

const (
	priorityEscalation = 100
	prioritySLAClock   = 80
	priorityNotify     = 60
	priorityDefault    = 50
)

// Priority ranks a workflow for dispatch against one event. Escalation
// workflows outrank everything when the event marks an imminent breach; SLA
// clock manipulation outranks notification; everything else shares the floor.
func Priority(workflow *models.Workflow, ectx models.ExecutionContext) int {
	if workflow.HasActionType(models.ActionEscalate) {
		if imminent, _ := ectx.Data["sla_breach_imminent"].(bool); imminent {
			return priorityEscalation
		}
	}

	if workflow.HasActionType(models.ActionPauseSLA) || workflow.HasActionType(models.ActionResumeSLA) {
		return prioritySLAClock
	}

	if workflow.HasActionType(models.ActionNotify) {
		return priorityNotify
	}

	return priorityDefault
}

// Prioritize returns the workflows in dispatch order: highest priority first,
// ties broken by older CreatedAt. The input slice is not mutated. Dispatch
// order does not imply mutual exclusion; it only decides launch order when one
// event is eligible for several workflows.
func Prioritize(workflows []*models.Workflow, ectx models.ExecutionContext) []*models.Workflow {
	ordered := make([]*models.Workflow, len(workflows))
	copy(ordered, workflows)

	sort.SliceStable(ordered, func(i, j int) bool {
		left, right := Priority(ordered[i], ectx), Priority(ordered[j], ectx)
		if left != right {
			return left > right
		}

		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	return ordered
}
