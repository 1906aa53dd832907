// Package execute runs bound plans. READY plans execute sequentially and
// fail fast; PENDING, ERROR, and no-action plans are dispatched to the
// registered handlers. Execution failures are returned inside the result,
// never thrown; a missing handler for a non-READY plan is a configuration
// error so the gap is visible during development.
package execute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"goa.design/plankit/runtime/actions"
	"goa.design/plankit/runtime/events"
	"goa.design/plankit/runtime/plan"
	"goa.design/plankit/runtime/telemetry"
)

type (
	// Handler reacts to a non-READY plan and produces the execution result
	// directly. Handlers typically render a user-facing reply: ask for the
	// pending parameters, apologize for an error, or explain that the
	// request is out of scope.
	Handler func(ctx context.Context, p *plan.Plan, actx *actions.Context) (*Result, error)

	// Options configures New. Actions is required; handlers are optional
	// but executing a plan in a state without its handler fails with a
	// ConfigError.
	Options struct {
		// Actions dispatches bound steps.
		Actions *actions.Registry

		// Emitter receives invocation lifecycle events. Nil disables
		// emission.
		Emitter *events.Emitter

		// Pending handles PENDING plans.
		Pending Handler

		// Error handles ERROR plans.
		Error Handler

		// NoAction handles plans with no actionable steps (empty or a sole
		// no-action step).
		NoAction Handler

		// Logger and Metrics default to noop implementations.
		Logger  telemetry.Logger
		Metrics telemetry.Metrics
	}

	// Executor runs bound plans. Executors are immutable and safe for
	// concurrent use; each Execute call owns its action context.
	Executor struct {
		registry *actions.Registry
		emitter  *events.Emitter
		pending  Handler
		errorH   Handler
		noAction Handler
		logger   telemetry.Logger
		metrics  telemetry.Metrics
	}

	// ConfigError reports a wiring gap: executing a plan state that has no
	// registered handler.
	ConfigError struct {
		Reason string
	}
)

// Error implements the error interface.
func (e *ConfigError) Error() string { return "execute: " + e.Reason }

// New constructs an Executor.
func New(opts Options) (*Executor, error) {
	if opts.Actions == nil {
		return nil, fmt.Errorf("execute: action registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Executor{
		registry: opts.Actions,
		emitter:  opts.Emitter,
		pending:  opts.Pending,
		errorH:   opts.Error,
		noAction: opts.NoAction,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Execute dispatches the plan according to its status. READY plans run their
// steps left to right with a fresh action context; anything else goes to the
// matching handler. Step failures are reported in the result; the returned
// error is reserved for configuration gaps and handler errors.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (*Result, error) {
	if p == nil {
		return nil, &ConfigError{Reason: "plan is required"}
	}
	actx := actions.NewContext()
	switch {
	case !hasActionableSteps(p):
		if e.noAction == nil {
			return nil, &ConfigError{Reason: "plan has no actions and no handler is registered"}
		}
		return e.noAction(ctx, p, actx)
	case p.Status() == plan.StatusPending:
		if e.pending == nil {
			return nil, &ConfigError{Reason: "plan is pending and no pending handler is registered"}
		}
		return e.pending(ctx, p, actx)
	case p.Status() == plan.StatusError:
		if e.errorH == nil {
			return nil, &ConfigError{Reason: "plan has errors and no error handler is registered"}
		}
		return e.errorH(ctx, p, actx)
	}
	return e.runSteps(ctx, p, actx)
}

// hasActionableSteps reports whether the plan contains anything beyond an
// explicit "no action identified" outcome.
func hasActionableSteps(p *plan.Plan) bool {
	if len(p.Steps) == 0 {
		return false
	}
	return p.Status() != plan.StatusNoAction
}

// runSteps executes a READY plan sequentially. Step N's events are fully
// emitted before step N+1 begins; the first failure stops execution.
func (e *Executor) runSteps(ctx context.Context, p *plan.Plan, actx *actions.Context) (*Result, error) {
	result := &Result{Plan: p, Context: actx, Executed: true, Success: true}
	for i, s := range p.Steps {
		step, ok := s.(plan.ActionStep)
		if !ok {
			// Status READY guarantees action steps only; anything else is
			// a resolver bug surfaced loudly.
			return nil, &ConfigError{Reason: fmt.Sprintf("step %d of a ready plan is not an action step", i)}
		}
		sr := e.runStep(ctx, step, actx)
		result.Steps = append(result.Steps, sr)
		if !sr.Success {
			result.Success = false
			result.FailedStep = i
			result.Reason = sr.Error.Error()
			return result, nil
		}
	}
	return result, nil
}

// runStep invokes one bound action with full lifecycle event emission.
func (e *Executor) runStep(ctx context.Context, step plan.ActionStep, actx *actions.Context) StepResult {
	var (
		id           = step.Binding.ID()
		invocationID = uuid.NewString()
	)
	e.emit(ctx, events.InvocationEvent{
		Kind:         events.KindAction,
		Type:         events.TypeRequested,
		ID:           id,
		InvocationID: invocationID,
		Timestamp:    time.Now(),
	})
	e.emit(ctx, events.InvocationEvent{
		Kind:         events.KindAction,
		Type:         events.TypeStarted,
		ID:           id,
		InvocationID: invocationID,
		Timestamp:    time.Now(),
	})

	start := time.Now()
	args := materializeArgs(step)
	output, err := e.registry.Dispatch(ctx, step.Binding, args, actx)
	duration := time.Since(start)
	e.metrics.RecordTimer("plankit_action_duration", duration, "action", id)

	if err != nil {
		e.logger.Warn(ctx, "action failed",
			"action", id,
			"invocation_id", invocationID,
			"err", err.Error())
		e.emit(ctx, events.InvocationEvent{
			Kind:         events.KindAction,
			Type:         events.TypeFailed,
			ID:           id,
			InvocationID: invocationID,
			Timestamp:    time.Now(),
			DurationMs:   duration.Milliseconds(),
			Attributes:   map[string]any{"error": err.Error()},
		})
		return StepResult{ActionID: id, InvocationID: invocationID, DurationMs: duration.Milliseconds(), Error: err}
	}

	attrs := map[string]any{}
	if key := step.Binding.ContextKey(); key != "" {
		actx.Set(key, output)
		attrs["context_key"] = key
	}
	e.emit(ctx, events.InvocationEvent{
		Kind:         events.KindAction,
		Type:         events.TypeSucceeded,
		ID:           id,
		InvocationID: invocationID,
		Timestamp:    time.Now(),
		DurationMs:   duration.Milliseconds(),
		Attributes:   attrs,
	})
	return StepResult{
		ActionID:     id,
		InvocationID: invocationID,
		DurationMs:   duration.Milliseconds(),
		Output:       output,
		Success:      true,
	}
}

// materializeArgs builds the positional argument slice in descriptor
// parameter order. Optional parameters the plan omitted are nil; the action
// context travels separately and is never part of the slice.
func materializeArgs(step plan.ActionStep) []any {
	desc := step.Binding.Descriptor()
	byName := make(map[string]any, len(step.Arguments))
	for _, a := range step.Arguments {
		byName[a.Name] = a.Value
	}
	args := make([]any, len(desc.Parameters))
	for i, p := range desc.Parameters {
		args[i] = byName[p.Name]
	}
	return args
}

// emit publishes the event when an emitter is configured.
func (e *Executor) emit(ctx context.Context, event events.InvocationEvent) {
	if e.emitter != nil {
		e.emitter.Emit(ctx, event)
	}
}
