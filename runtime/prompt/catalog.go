package prompt

import (
	"fmt"
	"strings"

	"goa.design/plankit/runtime/actions"
)

// renderCatalog formats the action catalog as a system message. Each action
// lists its identifier, description, and parameters with their types,
// requiredness, constraints, and example renderings.
func renderCatalog(descs []actions.ActionDescriptor) string {
	var b strings.Builder
	b.WriteString("Available actions:\n")
	for _, d := range descs {
		fmt.Fprintf(&b, "\n%s", d.ID)
		if d.Description != "" {
			fmt.Fprintf(&b, ": %s", d.Description)
		}
		b.WriteString("\n")
		for _, p := range d.Parameters {
			b.WriteString(renderParameter(p))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderParameter formats one catalog parameter line.
func renderParameter(p actions.ParameterDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  - %s (%s", p.Name, p.Type)
	if p.Required {
		b.WriteString(", required")
	} else {
		b.WriteString(", optional")
	}
	b.WriteString(")")
	if p.Description != "" {
		fmt.Fprintf(&b, ": %s", p.Description)
	}
	if len(p.AllowedValues) > 0 {
		fmt.Fprintf(&b, " [one of: %s]", strings.Join(p.AllowedValues, ", "))
		if p.CaseInsensitive {
			b.WriteString(" (case-insensitive)")
		}
	}
	if p.AllowedRegex != "" {
		fmt.Fprintf(&b, " [must match /%s/]", p.AllowedRegex)
	}
	if len(p.Examples) > 0 {
		fmt.Fprintf(&b, " e.g. %s", strings.Join(p.Examples, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

// typeGuidance collects schema guidance from type handlers for every type
// referenced by any catalog parameter, deduplicated in first-reference
// order. DSL identifiers take precedence over the declared type, matching
// coercion routing.
func typeGuidance(descs []actions.ActionDescriptor, handlers *actions.HandlerRegistry) []string {
	if handlers == nil {
		return nil
	}
	var (
		seen      = make(map[string]struct{})
		fragments []string
	)
	for _, d := range descs {
		for _, p := range d.Parameters {
			id := p.DslID
			if id == "" {
				id = p.Type
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			h, ok := handlers.ForParameter(p)
			if !ok {
				continue
			}
			if g, has := h.SchemaGuidance(p); has {
				fragments = append(fragments, g)
			}
		}
	}
	return fragments
}
