package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_Operators(t *testing.T) {
	data := map[string]any{
		"status":   "breached",
		"priority": 3,
		"elapsed":  float64(120),
		"ticket": map[string]any{
			"subject": "SLA breach on order processing",
		},
	}

	tests := []struct {
		name      string
		condition Condition
		want      bool
	}{
		{
			name:      "equals matches",
			condition: Condition{Field: "status", Operator: OperatorEquals, Value: "breached"},
			want:      true,
		},
		{
			name:      "equals widens numeric types",
			condition: Condition{Field: "priority", Operator: OperatorEquals, Value: float64(3)},
			want:      true,
		},
		{
			name:      "not_equals on differing value",
			condition: Condition{Field: "status", Operator: OperatorNotEquals, Value: "open"},
			want:      true,
		},
		{
			name:      "greater_than numeric",
			condition: Condition{Field: "elapsed", Operator: OperatorGreaterThan, Value: 100},
			want:      true,
		},
		{
			name:      "greater_than refuses non-numeric operands",
			condition: Condition{Field: "status", Operator: OperatorGreaterThan, Value: 1},
			want:      false,
		},
		{
			name:      "less_than numeric",
			condition: Condition{Field: "priority", Operator: OperatorLessThan, Value: 5},
			want:      true,
		},
		{
			name:      "contains on nested dot path",
			condition: Condition{Field: "ticket.subject", Operator: OperatorContains, Value: "breach"},
			want:      true,
		},
		{
			name:      "contains stringifies the resolved value",
			condition: Condition{Field: "priority", Operator: OperatorContains, Value: 3},
			want:      true,
		},
		{
			name:      "between inclusive bounds",
			condition: Condition{Field: "elapsed", Operator: OperatorBetween, Value: []any{100, 120}},
			want:      true,
		},
		{
			name:      "between outside range",
			condition: Condition{Field: "elapsed", Operator: OperatorBetween, Value: []any{0, 100}},
			want:      false,
		},
		{
			name:      "between rejects malformed pair",
			condition: Condition{Field: "elapsed", Operator: OperatorBetween, Value: []any{100}},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.condition, data))
		})
	}
}

func TestEvaluate_UnresolvablePath(t *testing.T) {
	data := map[string]any{"status": "open"}

	// Undefined compares false for every operator except not_equals.
	assert.False(t, Evaluate(Condition{Field: "missing", Operator: OperatorEquals, Value: "x"}, data))
	assert.False(t, Evaluate(Condition{Field: "status.deep", Operator: OperatorGreaterThan, Value: 1}, data))
	assert.False(t, Evaluate(Condition{Field: "missing", Operator: OperatorContains, Value: ""}, data))
	assert.False(t, Evaluate(Condition{Field: "missing", Operator: OperatorBetween, Value: []any{0, 1}}, data))
	assert.True(t, Evaluate(Condition{Field: "missing", Operator: OperatorNotEquals, Value: "x"}, data))
}

func TestEvaluateAll_LeftFold(t *testing.T) {
	// A is false with operator OR, B is true with operator AND, C is true.
	// Left fold: ((true AND A) OR B) AND C = ((true AND false) OR true) AND true = true.
	// Precedence-aware parsing (A OR (B AND C)) would also be true, so pin the
	// fold with a second arrangement where the orders disagree.
	data := map[string]any{"a": 1, "b": 2, "c": 3}

	conditions := []Condition{
		{Field: "a", Operator: OperatorEquals, Value: 99, LogicalOperator: LogicalOr},
		{Field: "b", Operator: OperatorEquals, Value: 2, LogicalOperator: LogicalAnd},
		{Field: "c", Operator: OperatorEquals, Value: 3},
	}
	assert.True(t, EvaluateAll(conditions, data))

	// ((true AND true) OR true) AND false = false, while right-associative
	// grouping true OR (true AND false) would give true.
	disagree := []Condition{
		{Field: "a", Operator: OperatorEquals, Value: 1, LogicalOperator: LogicalOr},
		{Field: "b", Operator: OperatorEquals, Value: 2, LogicalOperator: LogicalAnd},
		{Field: "c", Operator: OperatorEquals, Value: 99},
	}
	assert.False(t, EvaluateAll(disagree, data))
}

func TestEvaluateAll_Defaults(t *testing.T) {
	data := map[string]any{"a": 1}

	// Empty list matches unconditionally.
	assert.True(t, EvaluateAll(nil, data))

	// Missing logical operator folds as AND.
	conditions := []Condition{
		{Field: "a", Operator: OperatorEquals, Value: 1},
		{Field: "a", Operator: OperatorEquals, Value: 2},
	}
	assert.False(t, EvaluateAll(conditions, data))
}
