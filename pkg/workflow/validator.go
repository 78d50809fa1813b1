package workflow

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/schedule"
)

// Validator checks the structural invariants of a workflow definition. Struct
// tags cover field-level constraints; the cross-field invariants (schedules,
// duplicate orders, action parameter schemas) are checked explicitly.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateWorkflow returns a *ValidationError listing every violation found,
// or nil. It never stops at the first problem.
func (v *Validator) ValidateWorkflow(workflow *models.Workflow) error {
	var reasons []string

	if err := v.validate.Struct(workflow); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return &ValidationError{WorkflowName: workflow.Name, Reasons: []string{err.Error()}}
		}

		for _, fieldError := range fieldErrors {
			reasons = append(reasons, fmt.Sprintf("%s failed %q", fieldError.Namespace(), fieldError.Tag()))
		}
	}

	reasons = append(reasons, v.triggerReasons(workflow)...)
	reasons = append(reasons, v.actionReasons(workflow)...)

	if len(reasons) > 0 {
		return &ValidationError{WorkflowName: workflow.Name, Reasons: reasons}
	}

	return nil
}

func (v *Validator) triggerReasons(workflow *models.Workflow) []string {
	var reasons []string

	for _, trigger := range workflow.Triggers {
		if trigger.Kind != models.TriggerKindTimeBased {
			continue
		}

		if err := schedule.Validate(trigger.Schedule); err != nil {
			reasons = append(reasons, fmt.Sprintf("trigger %s: %v", trigger.ID, err))
		}
	}

	return reasons
}

func (v *Validator) actionReasons(workflow *models.Workflow) []string {
	var reasons []string

	orders := make(map[int]string, len(workflow.Actions))
	ids := make(map[string]struct{}, len(workflow.Actions))

	for _, action := range workflow.Actions {
		if action.ID != "" {
			if _, dup := ids[action.ID]; dup {
				reasons = append(reasons, fmt.Sprintf("duplicate action id %s", action.ID))
			}

			ids[action.ID] = struct{}{}
		}

		if other, dup := orders[action.Order]; dup {
			reasons = append(reasons, fmt.Sprintf("actions %s and %s share order %d", other, action.ID, action.Order))
		} else {
			orders[action.Order] = action.ID
		}

		reasons = append(reasons, validateActionParameters(action)...)
	}

	return reasons
}
