// Package events delivers action and tool invocation lifecycle events to
// subscribed listeners. The emitter fans out synchronously over a
// copy-on-write subscriber snapshot; a listener failure is logged and never
// aborts delivery to other listeners or the originating execution.
package events

import "time"

type (
	// Kind distinguishes the invocation source.
	Kind string

	// Type is the lifecycle phase of an invocation event.
	Type string

	// InvocationEvent records one lifecycle transition of an action or tool
	// invocation. For each invocation the emitted sequence is REQUESTED,
	// STARTED, then exactly one of SUCCEEDED or FAILED, with non-decreasing
	// timestamps.
	InvocationEvent struct {
		// Kind is the invocation source: action or tool.
		Kind Kind

		// Type is the lifecycle phase.
		Type Type

		// ID is the registered action (or tool) identifier.
		ID string

		// InvocationID uniquely identifies this call. All events of one
		// invocation share it.
		InvocationID string

		// ParentInvocationID links nested invocations to their parent,
		// empty for top-level calls.
		ParentInvocationID string

		// Timestamp is when the transition occurred. Events are stamped at
		// creation, not delivery.
		Timestamp time.Time

		// DurationMs is the wall-clock duration in milliseconds, set on
		// terminal events only.
		DurationMs int64

		// Attributes carries event metadata such as the context key a
		// result was stored under or the failure message.
		Attributes map[string]any
	}
)

// Invocation kinds.
const (
	KindAction Kind = "action"
	KindTool   Kind = "tool"
)

// Lifecycle phases.
const (
	TypeRequested Type = "REQUESTED"
	TypeStarted   Type = "STARTED"
	TypeSucceeded Type = "SUCCEEDED"
	TypeFailed    Type = "FAILED"
)
