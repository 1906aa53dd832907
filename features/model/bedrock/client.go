// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API. It encodes system and user messages into Converse
// content blocks and translates the response text back for the plan parser.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"goa.design/plankit/runtime/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client required
// by the adapter. It matches *bedrockruntime.Client so callers can pass either
// the real client or a mock in tests.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	// Runtime provides access to the Bedrock runtime. Required.
	Runtime RuntimeClient

	// Model is the model identifier used on every request. Required.
	Model string

	// MaxTokens caps the completion when positive; zero lets Bedrock use its
	// own default.
	MaxTokens int

	// Temperature is forwarded when positive.
	Temperature float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime   RuntimeClient
	model     string
	maxTokens int
	temp      float32
}

// New builds a Bedrock-backed model client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	return &Client{
		runtime:   opts.Runtime,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		temp:      opts.Temperature,
	}, nil
}

// Invoke issues one Converse call: system messages map to system content
// blocks, the user message to a single user turn. Throttling errors surface
// as model.ErrRateLimited so planner tiers can fall back.
func (c *Client) Invoke(ctx context.Context, req model.Request) (string, error) {
	if req.UserMessage == "" {
		return "", errors.New("bedrock: user message is required")
	}
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: req.UserMessage},
			},
		}},
		InferenceConfig: c.inferenceConfig(),
	}
	for _, s := range req.SystemMessages {
		if s == "" {
			continue
		}
		input.System = append(input.System, &brtypes.SystemContentBlockMemberText{Value: s})
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return "", fmt.Errorf("bedrock converse: %w", err)
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock: response carries no message output")
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	return b.String(), nil
}

func (c *Client) inferenceConfig() *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	set := false
	if c.maxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(c.maxTokens))
		set = true
	}
	if c.temp > 0 {
		cfg.Temperature = aws.Float32(c.temp)
		set = true
	}
	if !set {
		return nil
	}
	return &cfg
}

// isRateLimited reports whether err represents provider throttling. Both the
// modeled ThrottlingException and a raw HTTP 429 count.
func isRateLimited(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429 {
		return true
	}
	return false
}
