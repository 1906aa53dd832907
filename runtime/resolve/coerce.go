package resolve

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"goa.design/plankit/runtime/actions"
)

// coerce converts a raw JSON-decoded value into the runtime value for the
// parameter. Enumerated parameters match names case-insensitively and return
// the canonical constant. Primitive and list types use built-in coercion;
// everything else routes through the type handler registry (including
// DSL-flagged parameters).
func (r *Resolver) coerce(p actions.ParameterDescriptor, raw any) (any, error) {
	if len(p.Enum) > 0 {
		return coerceEnum(p, raw)
	}
	if p.DslID != "" {
		return r.handlerCoerce(p, raw)
	}
	switch p.Type {
	case actions.TypeString:
		return coerceString(p, raw)
	case actions.TypeInt:
		return coerceInt(p, raw)
	case actions.TypeFloat:
		return coerceFloat(p, raw)
	case actions.TypeBool:
		return coerceBool(p, raw)
	case actions.TypeStringList:
		return coerceList(p, raw, coerceString)
	case actions.TypeIntList:
		return coerceList(p, raw, coerceInt)
	default:
		return r.handlerCoerce(p, raw)
	}
}

// handlerCoerce delegates to the registered type handler for the parameter.
func (r *Resolver) handlerCoerce(p actions.ParameterDescriptor, raw any) (any, error) {
	h, ok := r.handlers.ForParameter(p)
	if !ok {
		id := p.DslID
		if id == "" {
			id = p.Type
		}
		return nil, fmt.Errorf("%s: no type handler registered for %q", p.Name, id)
	}
	return h.Coerce(p, raw)
}

// coerceEnum matches the raw value against the declared constant names
// case-insensitively and returns the canonical name.
func coerceEnum(p actions.ParameterDescriptor, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be one of [%s]", p.Name, strings.Join(p.Enum, ", "))
	}
	for _, name := range p.Enum {
		if strings.EqualFold(name, s) {
			return name, nil
		}
	}
	return nil, fmt.Errorf("%s must be one of [%s]", p.Name, strings.Join(p.Enum, ", "))
}

func coerceString(p actions.ParameterDescriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return nil, fmt.Errorf("%s must be a string", p.Name)
	}
}

// coerceInt accepts JSON numbers that are integral and in int64 range, plus
// decimal strings. Overflow and fractional values are errors.
func coerceInt(p actions.ParameterDescriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%s must be an integer", p.Name)
		}
		if v > float64(math.MaxInt64) || v < float64(math.MinInt64) {
			return nil, fmt.Errorf("%s overflows the integer range", p.Name)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			if strings.Contains(err.Error(), "out of range") {
				return nil, fmt.Errorf("%s overflows the integer range", p.Name)
			}
			return nil, fmt.Errorf("%s must be an integer", p.Name)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%s must be an integer", p.Name)
	}
}

func coerceFloat(p actions.ParameterDescriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", p.Name)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%s must be a number", p.Name)
	}
}

func coerceBool(p actions.ParameterDescriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean", p.Name)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%s must be a boolean", p.Name)
	}
}

// coerceList coerces each element of a JSON array with the given element
// coercion and returns a []any in element order.
func coerceList(p actions.ParameterDescriptor, raw any, elem func(actions.ParameterDescriptor, any) (any, error)) (any, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list", p.Name)
	}
	out := make([]any, 0, len(arr))
	for i, e := range arr {
		v, err := elem(p, e)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %v", p.Name, i, unprefix(err, p.Name))
		}
		out = append(out, v)
	}
	return out, nil
}

// unprefix strips the redundant parameter-name prefix from element errors so
// list messages read "items[2]: must be an integer" rather than repeating
// the name.
func unprefix(err error, name string) string {
	return strings.TrimPrefix(err.Error(), name+" ")
}

// checkConstraints enforces allowedValues membership and allowedRegex
// full-string matching on the coerced value. Empty constraint sets mean no
// constraint. The returned reason is empty when the value passes.
func checkConstraints(p actions.ParameterDescriptor, value any) string {
	if len(p.AllowedValues) == 0 && p.AllowedRegex == "" {
		return ""
	}
	rendered := renderValue(value)
	if len(p.AllowedValues) > 0 {
		for _, allowed := range p.AllowedValues {
			if allowed == rendered || (p.CaseInsensitive && strings.EqualFold(allowed, rendered)) {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of [%s]", p.Name, strings.Join(p.AllowedValues, ", "))
	}
	if !fullMatch(p.AllowedRegex, rendered, p.CaseInsensitive) {
		return fmt.Sprintf("%s must match /%s/", p.Name, p.AllowedRegex)
	}
	return ""
}

// fullMatch reports whether the value matches the pattern in its entirety.
// Patterns were validated at registration, so compile errors reject the
// value rather than panicking.
func fullMatch(pattern, value string, insensitive bool) bool {
	anchored := "^(?:" + pattern + ")$"
	if insensitive {
		anchored = "(?i)" + anchored
	}
	matched, err := regexp.MatchString(anchored, value)
	return err == nil && matched
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}
