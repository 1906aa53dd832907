// Package conversation carries rolling per-session state across planning
// turns and owns its serialized form: a versioned, integrity-checked binary
// blob the application persists between turns. The Manager type orchestrates
// a full turn: decode the prior blob, fold the user's reply into state,
// formulate a plan, optionally execute it, derive the next state, and encode
// the new blob.
package conversation

import (
	"time"

	"goa.design/plankit/runtime/plan"
)

type (
	// State is the rolling conversation state reconstructed from the prior
	// blob each turn. A new State value is produced for the next turn;
	// values are never mutated after encoding.
	State struct {
		// OriginalInstruction is the first user message of the turn chain.
		OriginalInstruction string `json:"originalInstruction"`

		// LatestUserMessage is the current turn's user input.
		LatestUserMessage string `json:"latestUserMessage"`

		// PendingParams lists parameters the last plan asked the user for.
		// Names present in ProvidedParams never appear here except when a
		// value was rejected and is being re-requested.
		PendingParams []plan.PendingParam `json:"pendingParams,omitempty"`

		// ProvidedParams accumulates values the user has supplied across
		// turns, keyed by parameter name.
		ProvidedParams map[string]any `json:"providedParams,omitempty"`

		// WorkingContext is the typed payload under refinement, nil when
		// the conversation carries none.
		WorkingContext *WorkingContext `json:"workingContext,omitempty"`

		// TurnHistory holds prior working contexts, oldest first, capped by
		// the manager's history size.
		TurnHistory []WorkingContext `json:"turnHistory,omitempty"`
	}

	// WorkingContext is a typed payload carried across turns, such as a
	// query being incrementally tuned.
	WorkingContext struct {
		// ContextType identifies the payload type in the payload registry.
		ContextType string `json:"contextType"`

		// Version is the payload schema version used for upgrades.
		Version int `json:"version"`

		// Payload is the typed value. In a freshly decoded state it is the
		// registry-materialized value; without a registered payload type it
		// remains the raw JSON tree.
		Payload any `json:"payload"`

		// LastModified records when the payload last changed.
		LastModified time.Time `json:"lastModified"`

		// Metadata carries optional payload annotations.
		Metadata map[string]string `json:"metadata,omitempty"`
	}
)

// Initial returns the state for the first turn of a conversation.
func Initial(userMessage string) *State {
	return &State{
		OriginalInstruction: userMessage,
		LatestUserMessage:   userMessage,
		ProvidedParams:      make(map[string]any),
	}
}

// Clone returns a deep-enough copy for deriving the next turn's state: maps
// and slices are copied, payloads are shared (they are treated as
// immutable).
func (s *State) Clone() *State {
	out := *s
	out.PendingParams = append([]plan.PendingParam(nil), s.PendingParams...)
	out.ProvidedParams = make(map[string]any, len(s.ProvidedParams))
	for k, v := range s.ProvidedParams {
		out.ProvidedParams[k] = v
	}
	out.TurnHistory = append([]WorkingContext(nil), s.TurnHistory...)
	if s.WorkingContext != nil {
		wc := *s.WorkingContext
		out.WorkingContext = &wc
	}
	return &out
}
