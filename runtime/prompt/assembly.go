package prompt

import (
	"sort"

	"goa.design/plankit/runtime/actions"
	"goa.design/plankit/runtime/plan"
)

type (
	// Conversation is the view of conversation state prompt assembly and
	// contributors receive. The zero value describes a fresh conversation.
	Conversation struct {
		// OriginalInstruction is the first user message of the turn chain.
		OriginalInstruction string

		// LatestUserMessage is the verbatim current user input.
		LatestUserMessage string

		// PendingParams lists parameters still awaiting values from the
		// previous plan.
		PendingParams []plan.PendingParam

		// ProvidedParams maps parameter names to values the user already
		// supplied.
		ProvidedParams map[string]any

		// ContextType identifies the working-context payload type, empty
		// when no working context is carried.
		ContextType string

		// WorkingContext is the typed payload carried across turns, nil
		// when absent.
		WorkingContext any
	}

	// Context is what each contributor receives: the catalog view, the
	// merged prompt context values, and the current conversation.
	Context struct {
		// Actions lists the registered descriptors in catalog order.
		Actions []actions.ActionDescriptor

		// Registry is the live registry view for contributors that need
		// lookups beyond the descriptor list.
		Registry *actions.Registry

		// Values is the merged prompt context supplied at planner build
		// time.
		Values map[string]any

		// Conversation is the current conversation view.
		Conversation Conversation
	}

	// Contributor produces an optional system prompt section. Contributors
	// run in registration order; a false boolean omits the section.
	Contributor func(Context) (string, bool)

	// Preview captures the fully assembled prompt for a turn: the ordered
	// system messages, the user message, and the action identifiers the
	// directive advertised. Planner dry runs return it without invoking any
	// model.
	Preview struct {
		SystemMessages []string
		UserMessage    string
		ActionIDs      []string
	}

	// Assembler composes prompts from its configured pieces. Assemblers are
	// immutable and safe for concurrent use.
	Assembler struct {
		persona      *Persona
		contributors []Contributor
		handlers     *actions.HandlerRegistry
		literals     []string
		values       map[string]any
	}

	// AssemblerOptions configures NewAssembler. All fields are optional.
	AssemblerOptions struct {
		// Persona renders as the second system message when set.
		Persona *Persona

		// Contributors run in order after the persona block.
		Contributors []Contributor

		// Handlers supplies type-handler schema guidance. Nil falls back to
		// the process-wide default handlers.
		Handlers *actions.HandlerRegistry

		// Literals are caller-added prompt sections appended after the
		// contributor outputs.
		Literals []string

		// Values is the merged prompt context passed to contributors.
		Values map[string]any
	}
)

// NewAssembler constructs a prompt assembler.
func NewAssembler(opts AssemblerOptions) *Assembler {
	handlers := opts.Handlers
	if handlers == nil {
		handlers = actions.DefaultHandlers()
	}
	return &Assembler{
		persona:      opts.Persona,
		contributors: append([]Contributor(nil), opts.Contributors...),
		handlers:     handlers,
		literals:     append([]string(nil), opts.Literals...),
		values:       opts.Values,
	}
}

// Assemble builds the prompt preview for a turn. The system message order is
// strict: guardrails, persona, contributors, type guidance, literals, retry
// addendum (follow-up turns only), and finally the planning directive. The
// user message is the verbatim latest user input.
func (a *Assembler) Assemble(registry *actions.Registry, userMessage string, conv Conversation) Preview {
	descs := registry.List()
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}

	system := []string{baseGuardrails}
	if block, ok := a.persona.Render(); ok {
		system = append(system, block)
	}
	pctx := Context{
		Actions:      descs,
		Registry:     registry,
		Values:       a.values,
		Conversation: conv,
	}
	for _, c := range a.contributors {
		if section, ok := c(pctx); ok && section != "" {
			system = append(system, section)
		}
	}
	system = append(system, renderCatalog(descs))
	system = append(system, typeGuidance(descs, a.handlers)...)
	system = append(system, a.literals...)
	if addendum, ok := renderRetryAddendum(conv); ok {
		system = append(system, addendum)
	}
	system = append(system, renderDirective(ids))

	return Preview{
		SystemMessages: system,
		UserMessage:    userMessage,
		ActionIDs:      ids,
	}
}

// sortedKeys returns the map keys in lexical order so rendered prompts are
// deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
