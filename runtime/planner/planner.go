// Package planner orchestrates plan formulation: it assembles the prompt,
// invokes the configured model tiers with per-tier retry budgets, parses and
// resolves each response, and aggregates attempt metrics. Recoverable
// failures (network, parse, validation) are absorbed into attempts; when
// every tier is exhausted the planner returns an ERROR-status plan so the
// caller's error handler observes failures uniformly.
package planner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"goa.design/plankit/runtime/actions"
	"goa.design/plankit/runtime/model"
	"goa.design/plankit/runtime/plan"
	"goa.design/plankit/runtime/prompt"
	"goa.design/plankit/runtime/resolve"
	"goa.design/plankit/runtime/telemetry"
)

type (
	// Tier is one model configuration with a retry budget. Tiers are tried
	// in order; within a tier, attempts run up to MaxAttempts before the
	// planner advances to the next tier.
	Tier struct {
		// Client invokes the model. Distinct tiers use distinct client
		// instances.
		Client model.Client

		// MaxAttempts is the tier's retry budget; values below 1 are
		// treated as 1.
		MaxAttempts int

		// ModelID identifies the tier's model in attempt records.
		ModelID string

		// Limiter optionally throttles the tier's model calls. The planner
		// waits on it before every attempt.
		Limiter *rate.Limiter
	}

	// Options configures New. Actions is required; everything else is
	// optional.
	Options struct {
		// Actions is the registry whose catalog the prompt advertises and
		// the resolver binds against.
		Actions *actions.Registry

		// TypeHandlers supplies coercion and schema guidance. Nil falls
		// back to the process-wide default handlers.
		TypeHandlers *actions.HandlerRegistry

		// Default is the first tier. Nil means every formulation is a dry
		// run returning only the prompt preview.
		Default *Tier

		// Fallbacks are additional tiers tried after the default tier is
		// exhausted.
		Fallbacks []Tier

		// Persona, Contributors, PromptContext, and PromptLiterals feed
		// prompt assembly.
		Persona        *prompt.Persona
		Contributors   []prompt.Contributor
		PromptContext  map[string]any
		PromptLiterals []string

		// Tools carries opaque provider tool definitions forwarded on every
		// model request.
		Tools []any

		// CapturePrompt fires PromptHook with the assembled preview on
		// every formulation.
		CapturePrompt bool

		// PromptHook observes assembled prompts when CapturePrompt is set.
		PromptHook func(prompt.Preview)

		// Logger, Metrics, and Tracer default to noop implementations.
		Logger  telemetry.Logger
		Metrics telemetry.Metrics
		Tracer  telemetry.Tracer
	}

	// Planner is the immutable plan formulation pipeline. Build one with
	// New; it is safe for concurrent use across sessions.
	Planner struct {
		registry  *actions.Registry
		resolver  *resolve.Resolver
		assembler *prompt.Assembler
		tiers     []Tier
		tools     []any
		capture   bool
		hook      func(prompt.Preview)
		logger    telemetry.Logger
		metrics   telemetry.Metrics
		tracer    telemetry.Tracer
	}

	// Result is the outcome of one formulation.
	Result struct {
		// Response is the raw model text of the accepted attempt, or the
		// last response observed when every tier failed.
		Response string

		// Plan is the bound plan. On terminal failure it is an ERROR-status
		// plan carrying the last error detail.
		Plan *plan.Plan

		// Preview is the assembled prompt for this turn.
		Preview prompt.Preview

		// Metrics aggregates the attempt history.
		Metrics Metrics

		// DryRun reports that no model was invoked.
		DryRun bool
	}
)

// errorSnippetLimit bounds the raw-response snippet embedded in terminal
// error plans.
const errorSnippetLimit = 800

// New constructs a Planner from the options.
func New(opts Options) (*Planner, error) {
	if opts.Actions == nil {
		return nil, fmt.Errorf("planner: action registry is required")
	}
	handlers := opts.TypeHandlers
	if handlers == nil {
		handlers = actions.DefaultHandlers()
	}
	var tiers []Tier
	if opts.Default != nil {
		if opts.Default.Client == nil {
			return nil, fmt.Errorf("planner: default tier requires a client")
		}
		tiers = append(tiers, *opts.Default)
	}
	for i, t := range opts.Fallbacks {
		if t.Client == nil {
			return nil, fmt.Errorf("planner: fallback tier %d requires a client", i)
		}
		if opts.Default == nil {
			return nil, fmt.Errorf("planner: fallback tiers require a default tier")
		}
		tiers = append(tiers, t)
	}
	for i := range tiers {
		if tiers[i].MaxAttempts < 1 {
			tiers[i].MaxAttempts = 1
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Planner{
		registry: opts.Actions,
		resolver: resolve.New(opts.Actions, handlers),
		assembler: prompt.NewAssembler(prompt.AssemblerOptions{
			Persona:      opts.Persona,
			Contributors: opts.Contributors,
			Handlers:     handlers,
			Literals:     opts.PromptLiterals,
			Values:       opts.PromptContext,
		}),
		tiers:   tiers,
		tools:   append([]any(nil), opts.Tools...),
		capture: opts.CapturePrompt,
		hook:    opts.PromptHook,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// FormulatePlan runs one planning turn: assemble the prompt, walk the tiers
// with their retry budgets, and return the first accepted plan. The returned
// error is non-nil only for context cancellation; model, parse, and
// validation failures are absorbed into the result's metrics and plan.
func (p *Planner) FormulatePlan(ctx context.Context, userMessage string, conv prompt.Conversation) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "planner.formulate")
	defer span.End()

	preview := p.assembler.Assemble(p.registry, userMessage, conv)
	if p.capture && p.hook != nil {
		p.hook(preview)
	}
	if len(p.tiers) == 0 {
		return &Result{
			Plan:    &plan.Plan{},
			Preview: preview,
			DryRun:  true,
		}, nil
	}

	var (
		metrics      Metrics
		lastPlan     *plan.Plan
		lastResponse string
		lastDetail   string
	)
	req := model.Request{
		SystemMessages: preview.SystemMessages,
		UserMessage:    preview.UserMessage,
		Tools:          p.tools,
	}
	for tierIndex, tier := range p.tiers {
		for attempt := 1; attempt <= tier.MaxAttempts; attempt++ {
			if tier.Limiter != nil {
				if err := tier.Limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("planner: rate limit wait: %w", err)
				}
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			start := time.Now()
			response, invokeErr := tier.Client.Invoke(ctx, req)
			record := AttemptRecord{
				ModelID:           tier.ModelID,
				TierIndex:         tierIndex,
				AttemptWithinTier: attempt,
			}

			var accepted *plan.Plan
			switch {
			case invokeErr != nil:
				record.Outcome = OutcomeNetworkError
				record.ErrorDetails = invokeErr.Error()
			default:
				lastResponse = response
				raw, parseErr := plan.Parse(response)
				if parseErr != nil {
					record.Outcome = OutcomeParseFailed
					record.ErrorDetails = parseErr.Error()
					break
				}
				bound := p.resolver.Resolve(raw)
				if bound.Status() == plan.StatusError {
					record.Outcome = OutcomeValidationFailed
					if reason, ok := bound.FirstError(); ok {
						record.ErrorDetails = reason
					}
					lastPlan = bound
					break
				}
				record.Outcome = OutcomeSuccess
				accepted = bound
			}

			record.DurationMs = time.Since(start).Milliseconds()
			metrics.record(record)
			p.metrics.IncCounter("plankit_plan_attempts", 1,
				"outcome", string(record.Outcome), "model", tier.ModelID)
			p.metrics.RecordTimer("plankit_plan_attempt_duration", time.Since(start),
				"model", tier.ModelID)
			if record.ErrorDetails != "" {
				lastDetail = record.ErrorDetails
			}

			if accepted != nil {
				metrics.WinningModel = tier.ModelID
				p.logger.Debug(ctx, "plan accepted",
					"model", tier.ModelID,
					"tier", tierIndex,
					"attempt", attempt,
					"steps", len(accepted.Steps))
				return &Result{
					Response: response,
					Plan:     accepted,
					Preview:  preview,
					Metrics:  metrics,
				}, nil
			}
			p.logger.Debug(ctx, "plan attempt failed",
				"model", tier.ModelID,
				"tier", tierIndex,
				"attempt", attempt,
				"outcome", string(record.Outcome),
				"detail", record.ErrorDetails)
		}
		if tierIndex < len(p.tiers)-1 {
			p.logger.Info(ctx, "tier exhausted, advancing to fallback",
				"model", tier.ModelID,
				"tier", tierIndex,
				"next_model", p.tiers[tierIndex+1].ModelID)
		}
	}

	p.logger.Warn(ctx, "all planner tiers exhausted",
		"attempts", metrics.TotalAttempts,
		"detail", lastDetail)
	return &Result{
		Response: lastResponse,
		Plan:     p.failurePlan(lastPlan, lastDetail, lastResponse),
		Preview:  preview,
		Metrics:  metrics,
	}, nil
}

// failurePlan returns the last resolved ERROR plan when one exists, else
// synthesizes an error plan carrying the last failure detail and a bounded
// snippet of the last raw response.
func (p *Planner) failurePlan(last *plan.Plan, detail, response string) *plan.Plan {
	if last != nil {
		return last
	}
	reason := "plan formulation failed"
	if detail != "" {
		reason = detail
	}
	if response != "" {
		reason = fmt.Sprintf("%s; last response: %s", reason, truncate(response, errorSnippetLimit))
	}
	return &plan.Plan{
		AssistantMessage: "I could not produce a valid plan for this request.",
		Steps:            []plan.Step{plan.ErrorStep{Reason: reason}},
	}
}

// truncate bounds s to under limit runes, appending an ellipsis when cut.
// A string of exactly limit runes is already too long and gets truncated.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) < limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
