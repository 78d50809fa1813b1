package models

// Operator compares a context value against the condition value.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
	OperatorBetween     Operator = "between"
)

// LogicalOperator combines a condition with the next one during the left fold.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Condition tests one field of the event context. Field is a dot path into
// nested maps. LogicalOperator governs how the FOLLOWING condition combines
// with the running result; it is ignored on the last condition.
type Condition struct {
	Field           string          `json:"field"    validate:"required"`
	Operator        Operator        `json:"operator" validate:"required,oneof=equals not_equals greater_than less_than contains between"`
	Value           any             `json:"value"`
	LogicalOperator LogicalOperator `json:"logical_operator,omitempty" validate:"omitempty,oneof=AND OR"`
}
