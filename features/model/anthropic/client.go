// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API. It translates planner requests into
// anthropic.Message calls using github.com/anthropics/anthropic-sdk-go and
// returns the concatenated text blocks for the plan parser.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"goa.design/plankit/runtime/model"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK client used by
	// the adapter. It is satisfied by *sdk.MessageService so callers can pass
	// either a real client or a mock in tests.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures the Anthropic adapter.
	Options struct {
		// Model is the Claude model identifier used on every request.
		// Required. Use the typed model constants from
		// github.com/anthropics/anthropic-sdk-go.
		Model string

		// MaxTokens caps the completion. Required to be positive.
		MaxTokens int

		// Temperature is forwarded when positive.
		Temperature float64
	}

	// Client implements model.Client on top of Anthropic Claude Messages.
	Client struct {
		msg       MessagesClient
		model     string
		maxTokens int
		temp      float64
	}
)

// New builds an Anthropic-backed model client from the provided Messages
// client and configuration options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("max_tokens must be positive")
	}
	return &Client{
		msg:       msg,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		temp:      opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, modelID string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{Model: modelID, MaxTokens: maxTokens})
}

// Invoke issues one non-streaming Messages.New request: system messages map
// to system blocks, the user message to a single user turn. Provider
// throttling surfaces as model.ErrRateLimited so planner tiers can fall back.
func (c *Client) Invoke(ctx context.Context, req model.Request) (string, error) {
	if req.UserMessage == "" {
		return "", errors.New("anthropic: user message is required")
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.UserMessage)),
		},
	}
	for _, s := range req.SystemMessages {
		if s == "" {
			continue
		}
		params.System = append(params.System, sdk.TextBlockParam{Text: s})
	}
	if c.temp > 0 {
		params.Temperature = sdk.Float(c.temp)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}
	return concatText(msg), nil
}

// concatText joins the text blocks of the response in order. Non-text blocks
// are ignored; plan formulation only consumes text.
func concatText(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
