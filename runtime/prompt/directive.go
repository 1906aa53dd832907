package prompt

import (
	"fmt"
	"strings"
)

// renderDirective builds the authoritative planning directive placed
// immediately before the user message. It is constructed per turn from the
// currently registered action identifiers, never memoized: actions
// registered between turns must appear here.
func renderDirective(actionIDs []string) string {
	var b strings.Builder
	b.WriteString(`Respond with exactly one JSON object and nothing else:
{"message":"<narration for the user>","steps":[...]}

Each step must have exactly one of these shapes:
- ACTION:    {"actionId":"<id>","description":"<why>","parameters":{<name>:<value>,...}}
- PENDING:   {"actionId":"<id>","status":"pending","pendingParams":[{"name":"<param>","prompt":"<question>"}],"providedParams":{<name>:<value>,...}}
- NO-ACTION: {"noAction":true,"reason":"<why nothing applies>"}
- ERROR:     {"error":true,"reason":"<what went wrong>"}
`)
	if len(actionIDs) > 0 {
		fmt.Fprintf(&b, "\nValid actionId values: %s\n", strings.Join(actionIDs, ", "))
	}
	b.WriteString(`
Critical rules:
- Use parameter names exactly as declared in the catalog. Never invent, rename, or abbreviate parameter names.
- Never guess values for required parameters. If a required value is unknown, emit a PENDING step asking for it.
- Never emit an empty string for a required parameter.
- Use a NO-ACTION step when the request is outside the catalog; do not combine it with other steps.
- STOP after the closing brace of the JSON object.`)
	return b.String()
}

// baseGuardrails is the first system message of every assembled prompt.
const baseGuardrails = `You plan actions for a runtime that executes them on your behalf. You never perform side effects yourself.
Ground every step in the provided action catalog and the user's request. Do not fabricate actions, parameters, or values.
Never emit an empty string where a required value is expected.`

// renderRetryAddendum summarizes outstanding pending parameters and already
// provided values on follow-up turns so the model folds the user's reply
// into the right slots. Structured fields pass through verbatim; they are
// never summarized.
func renderRetryAddendum(conv Conversation) (string, bool) {
	if len(conv.PendingParams) == 0 && len(conv.ProvidedParams) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("This is a follow-up turn.\n")
	if conv.OriginalInstruction != "" {
		fmt.Fprintf(&b, "Original request: %s\n", conv.OriginalInstruction)
	}
	if len(conv.PendingParams) > 0 {
		b.WriteString("The user was asked to provide:\n")
		for _, pp := range conv.PendingParams {
			fmt.Fprintf(&b, "- %s: %s\n", pp.Name, pp.Prompt)
		}
		b.WriteString("Interpret the user's reply as answering these before anything else.\n")
	}
	if len(conv.ProvidedParams) > 0 {
		b.WriteString("Values already provided (reuse them, do not ask again):\n")
		for _, name := range sortedKeys(conv.ProvidedParams) {
			fmt.Fprintf(&b, "- %s: %v\n", name, conv.ProvidedParams[name])
		}
	}
	return strings.TrimRight(b.String(), "\n"), true
}
