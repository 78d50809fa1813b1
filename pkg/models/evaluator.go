// Condition evaluation for workflow triggers.
package models

import (
	"fmt"
	"reflect"
	"strings"
)

// undefined marks a field path that does not resolve in the context. It
// compares false under every operator except not_equals.
type undefinedValue struct{}

var undefined = undefinedValue{}

// Evaluate tests a single condition against the event context.
func Evaluate(condition Condition, data map[string]any) bool {
	resolved := resolvePath(data, condition.Field)

	if _, ok := resolved.(undefinedValue); ok {
		return condition.Operator == OperatorNotEquals
	}

	switch condition.Operator {
	case OperatorEquals:
		return equal(resolved, condition.Value)
	case OperatorNotEquals:
		return !equal(resolved, condition.Value)
	case OperatorGreaterThan:
		left, right, ok := numericPair(resolved, condition.Value)

		return ok && left > right
	case OperatorLessThan:
		left, right, ok := numericPair(resolved, condition.Value)

		return ok && left < right
	case OperatorContains:
		return strings.Contains(stringify(resolved), stringify(condition.Value))
	case OperatorBetween:
		return between(resolved, condition.Value)
	default:
		return false
	}
}

// EvaluateAll folds a condition list left to right. The result starts true and
// each condition is combined with the running result using the logical
// operator carried by the PREVIOUS condition (AND when absent). The operator
// on condition i therefore governs how condition i+1 combines, not a
// precedence-aware parse.
func EvaluateAll(conditions []Condition, data map[string]any) bool {
	result := true
	combine := LogicalAnd

	for _, condition := range conditions {
		matched := Evaluate(condition, data)

		if combine == LogicalOr {
			result = result || matched
		} else {
			result = result && matched
		}

		combine = condition.LogicalOperator
		if combine == "" {
			combine = LogicalAnd
		}
	}

	return result
}

// resolvePath splits the field on "." and walks nested maps.
func resolvePath(data map[string]any, field string) any {
	if field == "" {
		return undefined
	}

	var current any = data

	for _, part := range strings.Split(field, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return undefined
		}

		current, ok = node[part]
		if !ok {
			return undefined
		}
	}

	return current
}

// equal is structural equality with numeric widening, so a JSON-decoded
// float64(3) still equals int(3).
func equal(left, right any) bool {
	if lf, rf, ok := numericPair(left, right); ok {
		return lf == rf
	}

	return reflect.DeepEqual(left, right)
}

func numericPair(left, right any) (float64, float64, bool) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)

	return lf, rf, lok && rok
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func stringify(value any) string {
	return fmt.Sprintf("%v", value)
}

// between expects value to be an ordered two-element pair and checks
// [low, high] inclusive on numeric operands.
func between(resolved, value any) bool {
	pair, ok := value.([]any)
	if !ok || len(pair) != 2 {
		return false
	}

	target, ok := toFloat(resolved)
	if !ok {
		return false
	}

	low, lok := toFloat(pair[0])
	high, hok := toFloat(pair[1])

	if !lok || !hok {
		return false
	}

	return target >= low && target <= high
}
