package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldline/slaflow/pkg/models"
)

func testContext() models.ExecutionContext {
	return models.ExecutionContext{
		TicketID: "t-42",
		TenantID: "tn-1",
		Data: map[string]any{
			"status":   "breached",
			"priority": 3,
			"ticket": map[string]any{
				"assignee": "ops-team",
			},
		},
	}
}

func TestInterpolate(t *testing.T) {
	params := map[string]any{
		"message":    "Ticket {{ticket_id}} is {{status}}",
		"recipients": []any{"{{ticket.assignee}}@example.com", "oncall@example.com"},
		"nested": map[string]any{
			"priority": "P{{priority}}",
		},
		"count": 7,
	}

	resolved := Interpolate(params, testContext())

	assert.Equal(t, "Ticket t-42 is breached", resolved["message"])
	assert.Equal(t, []any{"ops-team@example.com", "oncall@example.com"}, resolved["recipients"])
	assert.Equal(t, map[string]any{"priority": "P3"}, resolved["nested"])
	assert.Equal(t, 7, resolved["count"], "non-string values pass through untouched")

	// The input map is not mutated.
	assert.Equal(t, "Ticket {{ticket_id}} is {{status}}", params["message"])
}

func TestRender_UnresolvedPlaceholderLeftVerbatim(t *testing.T) {
	out := Render("status={{status}} owner={{missing.owner}}", testContext())

	assert.Equal(t, "status=breached owner={{missing.owner}}", out)
}

func TestRender_WhitespaceInsidePlaceholder(t *testing.T) {
	out := Render("{{ tenant_id }}", testContext())

	assert.Equal(t, "tn-1", out)
}

func TestInterpolate_Nil(t *testing.T) {
	assert.Nil(t, Interpolate(nil, testContext()))
}
