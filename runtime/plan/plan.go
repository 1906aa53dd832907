package plan

import "goa.design/plankit/runtime/actions"

type (
	// Status is the derived disposition of a bound plan. It is a pure
	// function of the plan's steps.
	Status string

	// Plan is the validated, bound representation of the model's intent.
	// Plans are constructed by the resolver and immutable afterwards.
	Plan struct {
		// AssistantMessage echoes the model's narration. It is always safe
		// to display; diagnostic detail stays in planner metrics.
		AssistantMessage string

		// Steps lists the bound steps in execution order.
		Steps []Step
	}

	// Step is the tagged union of bound plan step kinds. Exactly four
	// concrete types implement it: ActionStep, PendingActionStep,
	// NoActionStep, and ErrorStep.
	Step interface {
		stepKind() string
	}

	// ActionStep is a fully bound, executable invocation of a registered
	// action.
	ActionStep struct {
		// Binding joins the step to the registered callable.
		Binding *actions.Binding

		// Description is the model's explanation for choosing the action.
		Description string

		// Arguments holds the coerced argument values in descriptor
		// parameter order. Optional parameters the model omitted are not
		// present.
		Arguments []Argument
	}

	// Argument is a single coerced action argument.
	Argument struct {
		// Name is the declared parameter name.
		Name string

		// Value is the coerced runtime value.
		Value any

		// TargetType is the canonical type identifier the value was coerced
		// to.
		TargetType string
	}

	// PendingActionStep records an action the model selected but could not
	// fully parameterize. The runtime surfaces the pending prompts to the
	// application for follow-up elicitation.
	PendingActionStep struct {
		// ActionID references the selected action.
		ActionID string

		// Message is the narration associated with the pending request.
		Message string

		// PendingParams lists the outstanding parameters with prompts.
		PendingParams []PendingParam

		// ProvidedParams preserves the values already supplied.
		ProvidedParams map[string]any
	}

	// NoActionStep records the model's explicit decision that no registered
	// action applies. It must be the only step of its plan.
	NoActionStep struct {
		// Message explains why no action was identified.
		Message string
	}

	// ErrorStep records a validation or model failure for the step.
	ErrorStep struct {
		// Reason is a user-safe description of the failure.
		Reason string
	}
)

// Plan status values. StatusNoAction is the explicit "no action identified"
// state the executor dispatches to its own handler; it is distinct from
// StatusError.
const (
	StatusReady    Status = "READY"
	StatusPending  Status = "PENDING"
	StatusError    Status = "ERROR"
	StatusNoAction Status = "NO_ACTION"
)

func (ActionStep) stepKind() string        { return "action" }
func (PendingActionStep) stepKind() string { return "pending" }
func (NoActionStep) stepKind() string      { return "no_action" }
func (ErrorStep) stepKind() string         { return "error" }

// Status derives the plan disposition from its steps:
//
//   - ERROR when steps are empty or any step is an ErrorStep
//   - PENDING when any step is a PendingActionStep (and none errored)
//   - NO_ACTION when the only step is a NoActionStep
//   - READY when all steps are ActionSteps
//
// A NoActionStep mixed with other steps is malformed and maps to ERROR; the
// resolver never produces such plans.
func (p *Plan) Status() Status {
	if len(p.Steps) == 0 {
		return StatusError
	}
	var pending, actions, noActions int
	for _, s := range p.Steps {
		switch s.(type) {
		case ErrorStep:
			return StatusError
		case PendingActionStep:
			pending++
		case ActionStep:
			actions++
		case NoActionStep:
			noActions++
		}
	}
	if pending > 0 {
		return StatusPending
	}
	if noActions > 0 {
		if noActions == 1 && actions == 0 {
			return StatusNoAction
		}
		return StatusError
	}
	return StatusReady
}

// PendingParameterNames returns the names of all outstanding parameters
// across pending steps, in step then declaration order.
func (p *Plan) PendingParameterNames() []string {
	var names []string
	for _, s := range p.Steps {
		ps, ok := s.(PendingActionStep)
		if !ok {
			continue
		}
		for _, pp := range ps.PendingParams {
			names = append(names, pp.Name)
		}
	}
	return names
}

// PendingParams returns the pending parameter entries across pending steps.
func (p *Plan) PendingParams() []PendingParam {
	var params []PendingParam
	for _, s := range p.Steps {
		if ps, ok := s.(PendingActionStep); ok {
			params = append(params, ps.PendingParams...)
		}
	}
	return params
}

// FirstError returns the reason of the first ErrorStep, if any.
func (p *Plan) FirstError() (string, bool) {
	for _, s := range p.Steps {
		if es, ok := s.(ErrorStep); ok {
			return es.Reason, true
		}
	}
	return "", false
}
