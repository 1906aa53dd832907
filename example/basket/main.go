// Command basket is a runnable walkthrough of the planning runtime: it
// registers a small shopping-basket action catalog, wires a planner and an
// executor into a conversation manager, and drives a short multi-turn
// conversation. With OPENAI_API_KEY set it plans against the OpenAI API;
// without it a canned model stands in so the example runs offline.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"goa.design/clue/log"

	openaifeature "goa.design/plankit/features/model/openai"
	"goa.design/plankit/runtime/actions"
	"goa.design/plankit/runtime/conversation"
	"goa.design/plankit/runtime/events"
	"goa.design/plankit/runtime/execute"
	"goa.design/plankit/runtime/model"
	"goa.design/plankit/runtime/plan"
	"goa.design/plankit/runtime/planner"
	"goa.design/plankit/runtime/prompt"
	"goa.design/plankit/runtime/telemetry"
)

func main() {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatTerminal))
	if err := run(ctx); err != nil {
		log.Errorf(ctx, err, "basket example failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := telemetry.NewClueLogger()

	registry := actions.NewRegistry()
	basket := map[string]int{}
	if err := registerBasketActions(registry, basket); err != nil {
		return err
	}

	persona, err := prompt.ParsePersona([]byte(personaYAML))
	if err != nil {
		return err
	}

	client, modelID := pickModel()
	pl, err := planner.New(planner.Options{
		Actions: registry,
		Persona: persona,
		Default: &planner.Tier{Client: client, ModelID: modelID, MaxAttempts: 2},
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	emitter := events.NewEmitter(logger)
	sub, err := emitter.Subscribe(events.LoggingListener(logger))
	if err != nil {
		return err
	}
	defer sub.Close()

	exec, err := execute.New(execute.Options{
		Actions: registry,
		Emitter: emitter,
		Logger:  logger,
		Pending: func(_ context.Context, p *plan.Plan, actx *actions.Context) (*execute.Result, error) {
			prompts := make([]string, 0, len(p.PendingParams()))
			for _, pp := range p.PendingParams() {
				prompts = append(prompts, pp.Prompt)
			}
			return execute.NotExecuted(p, actx, strings.Join(prompts, " ")), nil
		},
		Error: func(_ context.Context, p *plan.Plan, actx *actions.Context) (*execute.Result, error) {
			reason, _ := p.FirstError()
			return execute.NotExecuted(p, actx, reason), nil
		},
		NoAction: func(_ context.Context, p *plan.Plan, actx *actions.Context) (*execute.Result, error) {
			return execute.NotExecuted(p, actx, p.AssistantMessage), nil
		},
	})
	if err != nil {
		return err
	}

	manager, err := conversation.NewManager(conversation.ManagerOptions{
		Planner:  pl,
		Executor: exec,
		Store:    conversation.NewMemoryStore(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	const session = "demo"
	for _, message := range []string{
		"add three apples to my basket",
		"actually make it bananas",
		"check out",
	} {
		fmt.Printf("\nuser> %s\n", message)
		result, err := manager.TurnForSession(ctx, session, message)
		if err != nil {
			return err
		}
		report(result)
	}
	return nil
}

// registerBasketActions declares the action catalog the planner advertises.
func registerBasketActions(registry *actions.Registry, basket map[string]int) error {
	add := actions.ActionDescriptor{
		ID:          "add_item",
		Description: "Add a quantity of a product to the shopping basket.",
		Parameters: []actions.ParameterDescriptor{
			{
				Name:        "product",
				Type:        actions.TypeString,
				Required:    true,
				Description: "Product name to add.",
				Enum:        []string{"apples", "bananas", "oranges"},
				Examples:    []string{"apples"},
			},
			{
				Name:        "quantity",
				Type:        actions.TypeInt,
				Required:    true,
				Description: "How many units to add.",
				Examples:    []string{"3"},
			},
		},
	}
	if err := registry.Register(actions.Action{
		Descriptor: add,
		Handler: func(_ context.Context, _ *actions.Context, args []any) (any, error) {
			product := args[0].(string)
			quantity := int(args[1].(int64))
			basket[product] += quantity
			return fmt.Sprintf("added %d %s", quantity, product), nil
		},
	}); err != nil {
		return err
	}

	checkout := actions.ActionDescriptor{
		ID:          "checkout",
		Description: "Finalize the basket and produce an order summary.",
		ContextKey:  "order_summary",
	}
	return registry.Register(actions.Action{
		Descriptor: checkout,
		Handler: func(_ context.Context, _ *actions.Context, _ []any) (any, error) {
			if len(basket) == 0 {
				return nil, fmt.Errorf("basket is empty")
			}
			parts := make([]string, 0, len(basket))
			for product, quantity := range basket {
				parts = append(parts, fmt.Sprintf("%d %s", quantity, product))
			}
			return "order placed: " + strings.Join(parts, ", "), nil
		},
	})
}

// pickModel returns an OpenAI-backed client when an API key is available and
// a canned offline client otherwise.
func pickModel() (model.Client, string) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		client, err := openaifeature.NewFromAPIKey(key, "gpt-4o-mini")
		if err == nil {
			return client, "gpt-4o-mini"
		}
	}
	return model.Func(cannedModel), "canned"
}

// cannedModel produces plausible plan JSON from trivial keyword matching so
// the example works without provider credentials.
func cannedModel(_ context.Context, req model.Request) (string, error) {
	message := strings.ToLower(req.UserMessage)
	switch {
	case strings.Contains(message, "check out"):
		return `{"message":"Placing your order.","steps":[{"actionId":"checkout","parameters":{}}]}`, nil
	case strings.Contains(message, "banana"):
		return `{"message":"Adding bananas.","steps":[{"actionId":"add_item","parameters":{"product":"bananas","quantity":3}}]}`, nil
	case strings.Contains(message, "apple"):
		return `{"message":"Adding apples.","steps":[{"actionId":"add_item","parameters":{"product":"apples","quantity":3}}]}`, nil
	}
	return `{"message":"I can only manage your basket.","steps":[{"noAction":true}]}`, nil
}

// report prints the turn outcome the way an application shell would.
func report(result *conversation.TurnResult) {
	fmt.Printf("assistant> %s\n", result.Plan.AssistantMessage)
	if result.Execution != nil {
		for _, step := range result.Execution.Steps {
			if step.Success {
				fmt.Printf("  [%s] %v\n", step.ActionID, step.Output)
			} else {
				fmt.Printf("  [%s] failed: %v\n", step.ActionID, step.Error)
			}
		}
		if !result.Execution.Executed && result.Execution.Reason != "" {
			fmt.Printf("  (%s)\n", result.Execution.Reason)
		}
	}
	for _, pending := range result.PendingParams {
		fmt.Printf("  still needed: %s (%s)\n", pending.Name, pending.Prompt)
	}
}

const personaYAML = `
role: shopping assistant
principles:
  - Keep the basket accurate and confirm every change.
constraints:
  - Never invent products outside the catalog.
style:
  - friendly and brief
`
