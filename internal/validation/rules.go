package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"formsync/internal/config"
)

type compiledRule struct {
	field   string
	source  string
	message string
	program *vm.Program
}

// RuleValidator evaluates boolean expressions over the snapshot. A rule
// that evaluates to false reports its message against its field.
type RuleValidator struct {
	rules []compiledRule
}

// NewRuleValidator compiles rules. Field names are available as variables;
// unknown names evaluate to nil. number(x) converts a string or number to a
// float and returns nil for empty or non-numeric input.
func NewRuleValidator(rules []config.RuleConfig) (*RuleValidator, error) {
	rv := &RuleValidator{}
	for i, r := range rules {
		program, err := expr.Compile(r.Expr,
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
			numberFunc,
		)
		if err != nil {
			return nil, fmt.Errorf("compile rule %d (%s): %w", i, r.Field, err)
		}
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("failed rule %q", r.Expr)
		}
		rv.rules = append(rv.rules, compiledRule{
			field:   r.Field,
			source:  r.Expr,
			message: msg,
			program: program,
		})
	}
	return rv, nil
}

var numberFunc = expr.Function("number", func(params ...any) (any, error) {
	return toNumber(params[0]), nil
})

func toNumber(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

func (v *RuleValidator) Validate(data map[string]any) *Errors {
	env := make(map[string]any, len(data))
	for k, val := range data {
		env[k] = val
	}

	var errs Errors
	for _, r := range v.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			errs.Add(r.field, fmt.Sprintf("cannot evaluate rule: %v", err))
			continue
		}
		if ok, _ := out.(bool); !ok {
			errs.Add(r.field, r.message)
		}
	}
	return errs.orNil()
}
