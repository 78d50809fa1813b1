package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/slaflow/pkg/models"
)

func TestValidateContext(t *testing.T) {
	workflow := &models.Workflow{ID: "w1", TenantID: "tn1"}

	tests := []struct {
		name   string
		ectx   models.ExecutionContext
		reason string
	}{
		{
			name:   "missing ticket id",
			ectx:   models.ExecutionContext{TenantID: "tn1"},
			reason: "missing ticket id",
		},
		{
			name:   "missing tenant id",
			ectx:   models.ExecutionContext{TicketID: "t1"},
			reason: "missing tenant id",
		},
		{
			name:   "tenant mismatch",
			ectx:   models.ExecutionContext{TicketID: "t1", TenantID: "tn2"},
			reason: "does not own",
		},
		{
			name:   "circular execution",
			ectx:   models.ExecutionContext{TicketID: "t1", TenantID: "tn1", ExecutionChain: []string{"w0", "w1"}},
			reason: "circular",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContext(workflow, tt.ectx)
			require.Error(t, err)

			var cve *ContextValidationError
			require.ErrorAs(t, err, &cve)
			assert.Equal(t, "w1", cve.WorkflowID)
			assert.Contains(t, cve.Reason, tt.reason)
		})
	}
}

func TestValidateContext_OK(t *testing.T) {
	workflow := &models.Workflow{ID: "w1", TenantID: "tn1"}
	ectx := models.ExecutionContext{TicketID: "t1", TenantID: "tn1", ExecutionChain: []string{"w0"}}

	assert.NoError(t, ValidateContext(workflow, ectx))
}
