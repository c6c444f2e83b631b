package eval

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/groundwork-iac/groundwork/internal/engine"
	"github.com/groundwork-iac/groundwork/internal/ir"
)

// EnvVarPrefix keys environment overrides for declared variables:
// GROUNDWORK_VAR_<name> overrides the default of variable <name>.
const EnvVarPrefix = "GROUNDWORK_VAR_"

// ResolveVariables computes the final value of every declared variable.
// Precedence: explicit override > environment > declared default. A
// variable with no value from any source, or a value violating its
// validation predicates, is a pre-plan validation failure. The second
// return value lists resolved values of sensitive variables, so callers
// can keep them out of plans and state.
func ResolveVariables(cfg *ir.Config, overrides map[string]string) (map[string]any, []string, error) {
	values := make(map[string]any, len(cfg.Variables))
	var sensitive []string

	for name, decl := range cfg.Variables {
		raw, source := lookupValue(name, overrides)

		var value any
		if source == "" {
			if decl.Default == nil {
				return nil, nil, &engine.ValidationError{
					Detail: fmt.Sprintf("variable %q has no value and no default", name),
				}
			}
			value = decl.Default
		} else {
			coerced, err := coerceValue(name, decl.Type, raw)
			if err != nil {
				return nil, nil, err
			}
			value = coerced
		}

		if err := validateValue(name, decl, value); err != nil {
			return nil, nil, err
		}

		values[name] = value
		if decl.Sensitive {
			sensitive = append(sensitive, fmt.Sprintf("%v", value))
		}
	}

	return values, sensitive, nil
}

func lookupValue(name string, overrides map[string]string) (raw, source string) {
	if v, ok := overrides[name]; ok {
		return v, "override"
	}
	if v, ok := os.LookupEnv(EnvVarPrefix + name); ok {
		return v, "environment"
	}
	return "", ""
}

func coerceValue(name, typ, raw string) (any, error) {
	switch typ {
	case "number":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: %q is not a number", name, raw),
			}
		}
		return n, nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: %q is not a bool", name, raw),
			}
		}
		return b, nil
	default:
		return raw, nil
	}
}

func validateValue(name string, decl *ir.Variable, value any) error {
	if len(decl.Enum) > 0 {
		str := fmt.Sprintf("%v", value)
		found := false
		for _, allowed := range decl.Enum {
			if str == allowed {
				found = true
				break
			}
		}
		if !found {
			return &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: value %q is not one of [%s]", name, str, strings.Join(decl.Enum, ", ")),
			}
		}
	}

	if decl.Min != nil || decl.Max != nil {
		n, ok := asNumber(value)
		if !ok {
			return &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: range constraint on non-numeric value %v", name, value),
			}
		}
		if decl.Min != nil && n < *decl.Min {
			return &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: %v is below minimum %v", name, n, *decl.Min),
			}
		}
		if decl.Max != nil && n > *decl.Max {
			return &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: %v is above maximum %v", name, n, *decl.Max),
			}
		}
	}

	if decl.Pattern != "" {
		re, err := regexp.Compile(decl.Pattern)
		if err != nil {
			return &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: invalid pattern %q: %v", name, decl.Pattern, err),
			}
		}
		if !re.MatchString(fmt.Sprintf("%v", value)) {
			return &engine.ValidationError{
				Detail: fmt.Sprintf("variable %q: value %q does not match pattern %q", name, value, decl.Pattern),
			}
		}
	}

	return nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// SubstituteVariables replaces ${var.<name>} placeholders throughout
// resource properties and outputs. A string that is exactly one
// placeholder takes the variable's typed value; embedded placeholders
// interpolate as text.
func SubstituteVariables(cfg *ir.Config, values map[string]any) {
	for _, res := range cfg.Resources {
		res.Properties = substituteMap(res.Properties, values)
	}
	cfg.Outputs = substituteMap(cfg.Outputs, values)
}

func substituteMap(m map[string]any, values map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = substitute(v, values)
	}
	return out
}

func substitute(v any, values map[string]any) any {
	switch val := v.(type) {
	case string:
		for name, value := range values {
			placeholder := "${var." + name + "}"
			if val == placeholder {
				return value
			}
			if strings.Contains(val, placeholder) {
				val = strings.ReplaceAll(val, placeholder, fmt.Sprintf("%v", value))
			}
		}
		return val
	case map[string]any:
		return substituteMap(val, values)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substitute(item, values)
		}
		return out
	default:
		return v
	}
}
