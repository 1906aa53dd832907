// Package model defines the provider-agnostic chat-client contract used by
// the planner. Implementations wrap provider SDKs (OpenAI, Anthropic,
// Bedrock) and live under features/model. The contract is deliberately
// prompt-in / text-out: the planner sends assembled system messages plus the
// user message and receives raw model text, which it parses into a plan. Tool
// calling protocols, streaming, and provider retries are the adapter's
// concern.
package model

import (
	"context"
	"errors"
)

type (
	// Client is the contract planner tiers use to invoke an LLM. Any error
	// returned by Invoke is treated by the planner as a network failure and
	// consumes a retry attempt. Implementations must be safe for concurrent
	// use: a single client instance may serve many planner turns.
	Client interface {
		// Invoke sends the system messages and user message to the model and
		// returns the generated text verbatim. The system messages arrive in
		// assembly order; adapters render them per provider convention (for
		// example as a single concatenated system block for Anthropic, or as
		// individual system-role messages for OpenAI). Tools carries opaque
		// provider-specific tool definitions and may be nil.
		Invoke(ctx context.Context, req Request) (string, error)
	}

	// Request captures a single chat invocation.
	Request struct {
		// SystemMessages is the ordered list of system prompt sections
		// produced by prompt assembly.
		SystemMessages []string

		// UserMessage is the verbatim latest user input.
		UserMessage string

		// Tools carries opaque tool definitions forwarded to the provider.
		// The core runtime never inspects these.
		Tools []any
	}

	// Func adapts a plain function to the Client interface. Useful in tests
	// and for simple wrappers.
	Func func(ctx context.Context, req Request) (string, error)
)

// Invoke calls the wrapped function.
func (f Func) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Adapters wrap provider errors with this sentinel so callers can
// distinguish throttling from hard failures.
var ErrRateLimited = errors.New("model: rate limited")
