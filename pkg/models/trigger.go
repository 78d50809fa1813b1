package models

// TriggerKind discriminates how a trigger decides that a workflow is eligible.
type TriggerKind string

const (
	TriggerKindTimeBased      TriggerKind = "time_based"
	TriggerKindEventBased     TriggerKind = "event_based"
	TriggerKindConditionBased TriggerKind = "condition_based"
)

// ScheduleKind selects the schedule syntax for time-based triggers.
type ScheduleKind string

const (
	ScheduleKindInterval ScheduleKind = "interval" // value is minutes
	ScheduleKindCron     ScheduleKind = "cron"     // value is a standard cron expression
)

// Schedule carries the timing rule of a time-based trigger.
type Schedule struct {
	Kind  ScheduleKind `json:"kind"  validate:"required,oneof=interval cron"`
	Value string       `json:"value" validate:"required"`
}

// Trigger makes a workflow eligible to run. Time-based triggers must carry a
// schedule; event-based and condition-based triggers carry conditions.
type Trigger struct {
	ID         string      `json:"id"`
	Kind       TriggerKind `json:"kind" validate:"required,oneof=time_based event_based condition_based"`
	Conditions []Condition `json:"conditions,omitempty" validate:"dive"`
	Schedule   *Schedule   `json:"schedule,omitempty"`
}
