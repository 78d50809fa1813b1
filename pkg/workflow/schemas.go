package workflow

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fieldline/slaflow/pkg/models"
)

// parameterSchemas describes the required parameters of each action type as a
// JSON schema. The executor re-checks presence at run time; these schemas
// reject a bad definition at create/update time instead, before it can fail
// every execution.
var parameterSchemas = map[models.ActionType]map[string]any{
	models.ActionNotify: {
		"type":     "object",
		"required": []string{"recipients"},
		"properties": map[string]any{
			"recipients": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string"},
			},
			"message": map[string]any{"type": "string"},
		},
	},
	models.ActionEscalate: {
		"type":     "object",
		"required": []string{"level"},
		"properties": map[string]any{
			"level": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.ActionAssign: {
		"type":     "object",
		"required": []string{"assignee"},
		"properties": map[string]any{
			"assignee": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.ActionUpdateField: {
		"type":     "object",
		"required": []string{"field", "value"},
		"properties": map[string]any{
			"field": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.ActionPauseSLA:  {"type": "object"},
	models.ActionResumeSLA: {"type": "object"},
	models.ActionCreateTask: {
		"type":     "object",
		"required": []string{"title"},
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string"},
		},
	},
}

// validateActionParameters checks an action's parameters against its type
// schema and returns one reason per violation. Template placeholders pass:
// schemas constrain shape, not resolved values.
func validateActionParameters(action *models.Action) []string {
	schema, ok := parameterSchemas[action.Type]
	if !ok {
		return []string{fmt.Sprintf("action %s has unknown type %q", action.ID, action.Type)}
	}

	params := action.Parameters
	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(params))
	if err != nil {
		return []string{fmt.Sprintf("action %s parameters are not validatable: %v", action.ID, err)}
	}

	if result.Valid() {
		return nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		reasons = append(reasons, fmt.Sprintf("action %s: %s", action.ID, violation.String()))
	}

	return reasons
}
