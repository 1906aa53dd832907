// Package actions implements the action catalog: descriptors that advertise
// operations to the LLM, bindings that join descriptors to runtime callables,
// the per-execution action context, and the type-handler registry used to
// coerce raw plan arguments into typed values.
//
// Registration is explicit: applications construct an ActionDescriptor and
// supply a HandlerFunc per action. There is no runtime reflection; the
// descriptor parameter order is the argument order the handler receives.
package actions

type (
	// ActionDescriptor advertises a single registered action. Descriptors are
	// immutable after registration; the registry hands out deep copies.
	ActionDescriptor struct {
		// ID is the stable identifier referenced by plan steps.
		ID string

		// Description is the human-readable text rendered into the prompt
		// catalog so the model knows when to select this action.
		Description string

		// ContextKey, when non-empty, names the action-context slot under
		// which the executor stores the action's return value.
		ContextKey string

		// Parameters lists the LLM-visible parameters in declaration order.
		// The order is the order arguments are delivered to the handler.
		Parameters []ParameterDescriptor
	}

	// ParameterDescriptor describes one LLM-visible action parameter.
	ParameterDescriptor struct {
		// Name is the parameter name the model must echo verbatim.
		Name string

		// Type is the canonical type identifier (see the Type* constants) or
		// a registered custom type handled by a TypeHandler.
		Type string

		// Required marks the parameter as mandatory. A missing or blank
		// required parameter demotes the step to pending during resolution.
		Required bool

		// Description documents the parameter for prompt rendering.
		Description string

		// Enum lists the canonical names of an enumerated type. When set and
		// AllowedValues is empty, registration copies these into
		// AllowedValues so the constraint is advertised and enforced.
		Enum []string

		// AllowedValues restricts the value to a closed set of string
		// renderings. An empty slice means no constraint.
		AllowedValues []string

		// AllowedRegex restricts the value to a full-string pattern match.
		// At most one of AllowedValues and AllowedRegex is meaningful.
		AllowedRegex string

		// CaseInsensitive relaxes AllowedValues membership and enum name
		// matching to be case-insensitive.
		CaseInsensitive bool

		// Examples holds literal renderings included in the prompt.
		Examples []string

		// DslID optionally names a domain-specific deserializer. When set,
		// the resolver routes coercion through the type handler registered
		// under this identifier instead of the one registered for Type.
		DslID string
	}
)

// Canonical type identifiers understood by the resolver's built-in coercion.
// Custom types register a TypeHandler under their own identifier.
const (
	TypeString     = "string"
	TypeInt        = "int"
	TypeFloat      = "float"
	TypeBool       = "bool"
	TypeStringList = "[]string"
	TypeIntList    = "[]int"
)

// Clone returns a deep copy of the descriptor. The registry clones before
// handing descriptors out so callers cannot mutate registered state.
func (d ActionDescriptor) Clone() ActionDescriptor {
	out := d
	out.Parameters = make([]ParameterDescriptor, len(d.Parameters))
	for i, p := range d.Parameters {
		out.Parameters[i] = p.Clone()
	}
	return out
}

// Clone returns a deep copy of the parameter descriptor.
func (p ParameterDescriptor) Clone() ParameterDescriptor {
	out := p
	out.Enum = append([]string(nil), p.Enum...)
	out.AllowedValues = append([]string(nil), p.AllowedValues...)
	out.Examples = append([]string(nil), p.Examples...)
	return out
}
