package execute

import (
	"goa.design/plankit/runtime/actions"
	"goa.design/plankit/runtime/plan"
)

type (
	// Result is the outcome of executing (or declining to execute) a plan.
	Result struct {
		// Plan is the plan that was dispatched.
		Plan *plan.Plan

		// Executed reports whether any steps ran. Handler-produced results
		// for non-READY plans leave it false.
		Executed bool

		// Success is true when every step completed, or when a handler
		// produced a successful result.
		Success bool

		// FailedStep is the index of the step that failed, meaningful only
		// when Executed is true and Success is false.
		FailedStep int

		// Reason carries the handler's or failing step's explanation.
		Reason string

		// Message is an optional user-facing reply produced by a handler.
		Message string

		// Steps holds per-step outcomes in execution order.
		Steps []StepResult

		// Context is the action context of this execution.
		Context *actions.Context
	}

	// StepResult records one step's execution.
	StepResult struct {
		// ActionID is the executed action identifier.
		ActionID string

		// InvocationID correlates the step with its lifecycle events.
		InvocationID string

		// Output is the action's return value, nil on failure.
		Output any

		// Error is the failure returned by the action, nil on success.
		Error error

		// Success reports whether the action completed.
		Success bool

		// DurationMs is the wall-clock execution time in milliseconds.
		DurationMs int64
	}
)

// NotExecuted builds a handler result for a plan that was deliberately not
// executed, preserving the executor's caller contract.
func NotExecuted(p *plan.Plan, actx *actions.Context, reason string) *Result {
	return &Result{
		Plan:    p,
		Context: actx,
		Success: true,
		Reason:  reason,
	}
}
