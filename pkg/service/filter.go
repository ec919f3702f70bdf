package service

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter selects entities with an expr-lang boolean expression evaluated
// against entity_id, domain, state and attributes.
//
//	domain == "light" && state == "on" && attributes.brightness > 100
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter parses an entity filter expression.
func CompileFilter(source string) (*Filter, error) {
	if source == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	program, err := expr.Compile(source,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}
	return &Filter{source: source, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.source
}

// Match evaluates the filter against one entity.
func (f *Filter) Match(s domain.EntityState) (bool, error) {
	attrs, _ := plain(s.Attributes).(map[string]any)
	if attrs == nil {
		attrs = map[string]any{}
	}
	out, err := expr.Run(f.program, map[string]any{
		"entity_id":  s.EntityID,
		"domain":     domain.EntityDomain(s.EntityID),
		"state":      s.State,
		"attributes": attrs,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate %q on %s: %w", f.source, s.EntityID, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("filter %q returned %T, want bool", f.source, out)
	}
	return ok, nil
}

// plain turns json.Number values into int64 or float64 so that expressions
// can compare them with literals.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	default:
		return v
	}
}
