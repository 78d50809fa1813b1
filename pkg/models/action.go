package models

// ActionType enumerates the effects a workflow can perform. Dispatch over this
// type is an exhaustive switch in the action executor; adding a value here
// must be answered there.
type ActionType string

const (
	ActionNotify      ActionType = "notify"
	ActionEscalate    ActionType = "escalate"
	ActionAssign      ActionType = "assign"
	ActionUpdateField ActionType = "update_field"
	ActionPauseSLA    ActionType = "pause_sla"
	ActionResumeSLA   ActionType = "resume_sla"
	ActionCreateTask  ActionType = "create_task"
)

// ActionTypes lists every known action type, in no particular order.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionNotify,
		ActionEscalate,
		ActionAssign,
		ActionUpdateField,
		ActionPauseSLA,
		ActionResumeSLA,
		ActionCreateTask,
	}
}

// Action is one effect of a workflow. Parameters may contain {{variable}}
// placeholders resolved from the execution context at run time. DelayMs is an
// explicit pre-execution delay; zero means the type-specific default applies.
// Order positions the action in the execution sequence; ties are rejected at
// validation time.
type Action struct {
	ID         string         `json:"id"`
	Type       ActionType     `json:"type" validate:"required,oneof=notify escalate assign update_field pause_sla resume_sla create_task"`
	Parameters map[string]any `json:"parameters"`
	DelayMs    int64          `json:"delay_ms,omitempty" validate:"gte=0"`
	Order      int            `json:"order"`
}
