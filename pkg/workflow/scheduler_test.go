package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldline/slaflow/pkg/models"
)

func workflowWithAction(id string, actionType models.ActionType, createdAt time.Time) *models.Workflow {
	return &models.Workflow{
		ID:        id,
		CreatedAt: createdAt,
		Actions:   []*models.Action{{ID: id + "-a1", Type: actionType, Order: 1}},
	}
}

func TestPrioritize_OrdersByRank(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	escalation := workflowWithAction("w-escalate", models.ActionEscalate, base)
	slaClock := workflowWithAction("w-pause", models.ActionPauseSLA, base)
	notify := workflowWithAction("w-notify", models.ActionNotify, base)
	other := workflowWithAction("w-task", models.ActionCreateTask, base)

	ectx := models.ExecutionContext{Data: map[string]any{"sla_breach_imminent": true}}

	ordered := Prioritize([]*models.Workflow{other, notify, slaClock, escalation}, ectx)

	got := make([]string, 0, len(ordered))
	for _, workflow := range ordered {
		got = append(got, workflow.ID)
	}

	assert.Equal(t, []string{"w-escalate", "w-pause", "w-notify", "w-task"}, got)
}

func TestPrioritize_EscalationNeedsImminentBreach(t *testing.T) {
	escalation := workflowWithAction("w-escalate", models.ActionEscalate, time.Now())

	assert.Equal(t, priorityDefault, Priority(escalation, models.ExecutionContext{}))
	assert.Equal(t, priorityEscalation, Priority(escalation, models.ExecutionContext{
		Data: map[string]any{"sla_breach_imminent": true},
	}))
}

func TestPrioritize_TiesBrokenByAge(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	older := workflowWithAction("w-older", models.ActionNotify, base)
	newer := workflowWithAction("w-newer", models.ActionNotify, base.Add(time.Hour))

	ordered := Prioritize([]*models.Workflow{newer, older}, models.ExecutionContext{})

	assert.Equal(t, "w-older", ordered[0].ID)
	assert.Equal(t, "w-newer", ordered[1].ID)
}

func TestPrioritize_DoesNotMutateInput(t *testing.T) {
	base := time.Now()
	input := []*models.Workflow{
		workflowWithAction("w1", models.ActionCreateTask, base),
		workflowWithAction("w2", models.ActionNotify, base),
	}

	Prioritize(input, models.ExecutionContext{})

	assert.Equal(t, "w1", input[0].ID)
	assert.Equal(t, "w2", input[1].ID)
}
