// Package prompt assembles the ordered system messages and user message sent
// to a planner tier. Assembly composes, in strict order: the base guardrail
// prompt, the persona block, contributor outputs, type-handler guidance,
// caller-added literals, the retry addendum on follow-up turns, and the
// authoritative planning directive built per turn from the registered
// actions.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona describes the assistant's role and style. The block renders as the
// second system message, immediately after the base guardrails.
type Persona struct {
	// Role is a one-line description of who the assistant is.
	Role string `yaml:"role"`

	// Principles lists behavioral principles, rendered as bullets.
	Principles []string `yaml:"principles"`

	// Constraints lists hard limits on behavior.
	Constraints []string `yaml:"constraints"`

	// Style lists tone and formatting guidance.
	Style []string `yaml:"style"`
}

// LoadPersona reads a persona definition from a YAML file.
func LoadPersona(path string) (*Persona, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read persona: %w", err)
	}
	return ParsePersona(b)
}

// ParsePersona decodes a persona definition from YAML bytes.
func ParsePersona(b []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("prompt: parse persona: %w", err)
	}
	if p.Role == "" {
		return nil, fmt.Errorf("prompt: persona requires a role")
	}
	return &p, nil
}

// Render formats the persona block as a single system message. The boolean
// is false when the persona is nil or empty.
func (p *Persona) Render() (string, bool) {
	if p == nil || p.Role == "" {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", p.Role)
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString(title + ":\n")
		for _, l := range lines {
			b.WriteString("- " + l + "\n")
		}
	}
	section("Principles", p.Principles)
	section("Constraints", p.Constraints)
	section("Style", p.Style)
	return strings.TrimRight(b.String(), "\n"), true
}
