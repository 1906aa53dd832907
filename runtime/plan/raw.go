// Package plan defines the two plan representations that flow through the
// runtime: the RawPlan decoded from LLM output and the bound Plan produced by
// the resolver. It also implements the JSON extraction step that locates a
// plan object inside free-form model text.
package plan

import "strings"

type (
	// RawPlan is the untrusted plan shape decoded from model output. Unknown
	// top-level fields are tolerated; step discrimination happens during
	// resolution, not decoding.
	RawPlan struct {
		// Message is the model's free-form narration.
		Message string `json:"message"`

		// Steps lists the raw steps in plan order.
		Steps []RawStep `json:"steps"`
	}

	// RawStep is a single undiscriminated step. Exactly one profile should
	// be populated (action, pending, no-action, or error); the resolver
	// classifies each step by inspecting which discriminators are present.
	RawStep struct {
		// ActionID references a registered action for action and pending
		// profiles. It must be absent on no-action and error profiles.
		ActionID string `json:"actionId"`

		// Description explains why the model chose this action.
		Description string `json:"description"`

		// Parameters carries the raw argument map of an action profile.
		Parameters map[string]any `json:"parameters"`

		// Status is "pending" on the pending profile, empty otherwise.
		Status string `json:"status"`

		// PendingParams enumerates the parameters the model could not fill.
		PendingParams []PendingParam `json:"pendingParams"`

		// ProvidedParams carries values the user already supplied.
		ProvidedParams map[string]any `json:"providedParams"`

		// NoAction marks the explicit "nothing to do" profile.
		NoAction bool `json:"noAction"`

		// Error marks the explicit error profile.
		Error bool `json:"error"`

		// Reason carries the no-action or error explanation.
		Reason string `json:"reason"`
	}

	// PendingParam names a parameter awaiting a user-supplied value together
	// with the question to ask for it. The shape is shared between the wire
	// format, bound pending steps, and conversation state.
	PendingParam struct {
		// Name is the declared parameter name.
		Name string `json:"name"`

		// Prompt is the question to surface to the user.
		Prompt string `json:"prompt"`
	}
)

// pending is the status discriminator value of the pending step profile.
const pendingStatus = "pending"

// IsPending reports whether the step carries the pending discriminator:
// either the pending status marker (any case) or a non-empty pendingParams
// list. Models are inconsistent about which one they emit.
func (s RawStep) IsPending() bool {
	return strings.EqualFold(s.Status, pendingStatus) || len(s.PendingParams) > 0
}
