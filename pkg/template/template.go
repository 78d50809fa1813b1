// Package template resolves {{variable}} placeholders in action parameters
// from the execution context. It is a deliberately narrow substitution pass
// over a dot-pathed context map, not a template language.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldline/slaflow/pkg/models"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Interpolate returns a copy of params with every {{variable}} occurrence in
// string values (including strings nested in maps and slices) replaced by the
// value resolved from the execution context. Unresolved placeholders are left
// verbatim.
func Interpolate(params map[string]any, ectx models.ExecutionContext) map[string]any {
	if params == nil {
		return nil
	}

	scope := scopeFor(ectx)

	resolved := make(map[string]any, len(params))
	for key, value := range params {
		resolved[key] = interpolateValue(value, scope)
	}

	return resolved
}

// Render substitutes placeholders in a single string.
func Render(input string, ectx models.ExecutionContext) string {
	return renderString(input, scopeFor(ectx))
}

// scopeFor exposes the event data plus the correlation ids under fixed names.
func scopeFor(ectx models.ExecutionContext) map[string]any {
	scope := make(map[string]any, len(ectx.Data)+2)
	for key, value := range ectx.Data {
		scope[key] = value
	}

	scope["ticket_id"] = ectx.TicketID
	scope["tenant_id"] = ectx.TenantID

	return scope
}

func interpolateValue(value any, scope map[string]any) any {
	switch v := value.(type) {
	case string:
		return renderString(v, scope)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, nested := range v {
			out[key] = interpolateValue(nested, scope)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, nested := range v {
			out[i] = interpolateValue(nested, scope)
		}

		return out
	default:
		return value
	}
}

func renderString(input string, scope map[string]any) string {
	return placeholder.ReplaceAllStringFunc(input, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]

		value, ok := lookup(scope, path)
		if !ok {
			return match
		}

		return fmt.Sprintf("%v", value)
	})
}

func lookup(scope map[string]any, path string) (any, bool) {
	var current any = scope

	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
