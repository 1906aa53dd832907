// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API. It translates planner requests into ChatCompletion
// calls using github.com/sashabaranov/go-openai and returns the assistant's
// text for the plan parser.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"goa.design/plankit/runtime/model"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
// It is satisfied by *openai.Client so callers can pass either a real client
// or a mock in tests.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	// Client issues the chat completion calls. Required.
	Client ChatClient

	// Model is the model identifier used on every request. Required.
	Model string

	// Temperature is forwarded on every request. Zero means the provider
	// default.
	Temperature float32

	// MaxTokens caps the completion when positive.
	MaxTokens int
}

// Client implements model.Client via the OpenAI Chat Completions API.
type Client struct {
	chat      ChatClient
	model     string
	temp      float32
	maxTokens int
}

// New builds an OpenAI-backed model client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	return &Client{
		chat:      opts.Client,
		model:     opts.Model,
		temp:      opts.Temperature,
		maxTokens: opts.MaxTokens,
	}, nil
}

// NewFromAPIKey constructs a client using the default go-openai HTTP client.
func NewFromAPIKey(apiKey, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	return New(Options{Client: openai.NewClient(apiKey), Model: modelID})
}

// Invoke issues one chat completion: system messages in order, then the user
// message. Provider throttling surfaces as model.ErrRateLimited so planner
// tiers can fall back.
func (c *Client) Invoke(ctx context.Context, req model.Request) (string, error) {
	if req.UserMessage == "" {
		return "", errors.New("openai: user message is required")
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(req.SystemMessages)+1)
	for _, s := range req.SystemMessages {
		if s == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: s,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage,
	})

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temp,
		MaxTokens:   c.maxTokens,
		Tools:       providerTools(req.Tools),
	}
	resp, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// providerTools keeps the opaque tool definitions that are already go-openai
// values; anything else is ignored.
func providerTools(tools []any) []openai.Tool {
	var out []openai.Tool
	for _, t := range tools {
		if tool, ok := t.(openai.Tool); ok {
			out = append(out, tool)
		}
	}
	return out
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
