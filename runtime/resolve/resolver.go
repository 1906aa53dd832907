// Package resolve translates raw plans decoded from model output into bound,
// validated plans. Each raw step is classified by its discriminators, action
// steps are bound against the action registry, arguments are coerced through
// type handlers, and parameter constraints are enforced. The resolver never
// returns an error: every failure mode is represented inside the returned
// plan so the planner and executor observe a uniform shape.
package resolve

import (
	"fmt"
	"strings"

	"goa.design/plankit/runtime/actions"
	"goa.design/plankit/runtime/plan"
)

// Resolver binds raw plans against a frozen action registry and a type
// handler registry. Resolvers are immutable and safe for concurrent use.
type Resolver struct {
	registry *actions.Registry
	handlers *actions.HandlerRegistry
}

// New constructs a resolver. A nil handler registry falls back to the
// process-wide default handlers.
func New(registry *actions.Registry, handlers *actions.HandlerRegistry) *Resolver {
	if handlers == nil {
		handlers = actions.DefaultHandlers()
	}
	return &Resolver{registry: registry, handlers: handlers}
}

// Resolve maps the raw plan to a bound plan. Step classification follows a
// strict order: explicit error, explicit no-action, pending, then action
// binding. Constraint violations collapse the whole plan into a single error
// step so a partially bound plan is never observable.
func (r *Resolver) Resolve(raw *plan.RawPlan) *plan.Plan {
	if raw == nil {
		return &plan.Plan{Steps: []plan.Step{plan.ErrorStep{Reason: "empty plan"}}}
	}
	bound := &plan.Plan{AssistantMessage: raw.Message}
	for _, rs := range raw.Steps {
		step, fatal := r.resolveStep(raw, rs)
		if fatal != "" {
			return &plan.Plan{
				AssistantMessage: raw.Message,
				Steps:            []plan.Step{plan.ErrorStep{Reason: fatal}},
			}
		}
		bound.Steps = append(bound.Steps, step)
	}
	if reason, bad := noActionExclusivity(bound.Steps); bad {
		return &plan.Plan{
			AssistantMessage: raw.Message,
			Steps:            []plan.Step{plan.ErrorStep{Reason: reason}},
		}
	}
	return bound
}

// resolveStep classifies and binds a single raw step. A non-empty fatal
// string collapses the whole plan into an error step (constraint or type
// violations); recoverable problems are expressed as per-step error steps.
func (r *Resolver) resolveStep(raw *plan.RawPlan, rs plan.RawStep) (plan.Step, string) {
	switch {
	case rs.Error:
		if rs.ActionID != "" {
			return plan.ErrorStep{Reason: "error step must not carry an actionId"}, ""
		}
		return plan.ErrorStep{Reason: rs.Reason}, ""

	case rs.NoAction:
		if rs.ActionID != "" {
			return plan.ErrorStep{Reason: "no_action step must not carry an actionId"}, ""
		}
		return plan.NoActionStep{Message: firstNonEmpty(rs.Reason, raw.Message)}, ""

	case rs.IsPending():
		return r.resolvePending(raw, rs), ""

	default:
		return r.resolveAction(raw, rs)
	}
}

// resolvePending validates the pending profile: the action must exist and at
// least one pending parameter must be named. A pending name that already has
// a provided value is treated as a re-request for an invalid value: the stale
// value is dropped so the prompt stands.
func (r *Resolver) resolvePending(raw *plan.RawPlan, rs plan.RawStep) plan.Step {
	if rs.ActionID == "" {
		return plan.ErrorStep{Reason: "pending step requires an actionId"}
	}
	if _, ok := r.registry.Find(rs.ActionID); !ok {
		return plan.ErrorStep{Reason: fmt.Sprintf("unknown action: %s", rs.ActionID)}
	}
	if len(rs.PendingParams) == 0 {
		return plan.ErrorStep{Reason: fmt.Sprintf("pending step for %s lists no pending parameters", rs.ActionID)}
	}
	provided := make(map[string]any, len(rs.ProvidedParams))
	for k, v := range rs.ProvidedParams {
		provided[k] = v
	}
	for _, pp := range rs.PendingParams {
		delete(provided, pp.Name)
	}
	return plan.PendingActionStep{
		ActionID:       rs.ActionID,
		Message:        firstNonEmpty(rs.Description, raw.Message),
		PendingParams:  append([]plan.PendingParam(nil), rs.PendingParams...),
		ProvidedParams: provided,
	}
}

// resolveAction binds an action step: looks up the action, walks the
// declared parameters in descriptor order, coerces values, and enforces
// constraints. Missing required parameters demote the step to pending; the
// model is told not to guess and the resolver mirrors that.
func (r *Resolver) resolveAction(raw *plan.RawPlan, rs plan.RawStep) (plan.Step, string) {
	if rs.ActionID == "" {
		return plan.ErrorStep{Reason: "step has no recognizable profile"}, ""
	}
	binding, ok := r.registry.Find(rs.ActionID)
	if !ok {
		return plan.ErrorStep{Reason: fmt.Sprintf("unknown action: %s", rs.ActionID)}, ""
	}
	desc := binding.Descriptor()

	var (
		args    []plan.Argument
		missing []plan.PendingParam
	)
	for _, p := range desc.Parameters {
		rawVal, present := rs.Parameters[p.Name]
		if !present || isBlank(rawVal) {
			if p.Required {
				missing = append(missing, plan.PendingParam{
					Name:   p.Name,
					Prompt: missingPrompt(p),
				})
			}
			continue
		}
		value, err := r.coerce(p, rawVal)
		if err != nil {
			return nil, err.Error()
		}
		if reason := checkConstraints(p, value); reason != "" {
			return nil, reason
		}
		args = append(args, plan.Argument{Name: p.Name, Value: value, TargetType: p.Type})
	}
	if len(missing) > 0 {
		return plan.PendingActionStep{
			ActionID:       rs.ActionID,
			Message:        firstNonEmpty(rs.Description, raw.Message),
			PendingParams:  missing,
			ProvidedParams: presentParams(rs.Parameters, missing),
		}, ""
	}
	return plan.ActionStep{
		Binding:     binding,
		Description: rs.Description,
		Arguments:   args,
	}, ""
}

// noActionExclusivity enforces that a no-action step appears alone.
func noActionExclusivity(steps []plan.Step) (string, bool) {
	var noActions int
	for _, s := range steps {
		if _, ok := s.(plan.NoActionStep); ok {
			noActions++
		}
	}
	if noActions > 0 && len(steps) > noActions || noActions > 1 {
		return "no_action step must be the only step", true
	}
	return "", false
}

// missingPrompt renders the elicitation question for a missing required
// parameter.
func missingPrompt(p actions.ParameterDescriptor) string {
	if p.Description != "" {
		return fmt.Sprintf("Please provide %s (%s).", p.Name, p.Description)
	}
	return fmt.Sprintf("Please provide a value for %s.", p.Name)
}

// presentParams returns the raw parameters that were supplied and are not
// among the missing ones, preserved for the pending step's provided map.
func presentParams(params map[string]any, missing []plan.PendingParam) map[string]any {
	out := make(map[string]any)
	for k, v := range params {
		if isBlank(v) {
			continue
		}
		out[k] = v
	}
	for _, m := range missing {
		delete(out, m.Name)
	}
	return out
}

// isBlank reports whether the raw value is absent for resolution purposes:
// nil, or a string of only whitespace. An empty required string is
// equivalent to a missing one.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
