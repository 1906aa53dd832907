package bedrock_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/features/model/bedrock"
	"goa.design/plankit/runtime/model"
)

type mockRuntime struct {
	input  *bedrockruntime.ConverseInput
	output *bedrockruntime.ConverseOutput
	err    error
}

func (m *mockRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = params
	return m.output, m.err
}

func TestInvoke(t *testing.T) {
	mock := &mockRuntime{
		output: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: `{"message":"ok","steps":[]}`},
				},
			}},
		},
	}
	client, err := bedrock.New(bedrock.Options{
		Runtime:   mock,
		Model:     "anthropic.claude-3-haiku",
		MaxTokens: 1024,
	})
	require.NoError(t, err)

	text, err := client.Invoke(context.Background(), model.Request{
		SystemMessages: []string{"guardrails"},
		UserMessage:    "book a hotel",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"message":"ok","steps":[]}`, text)

	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(mock.input.ModelId))
	require.Len(t, mock.input.System, 1)
	require.Len(t, mock.input.Messages, 1)
	require.NotNil(t, mock.input.InferenceConfig)
	assert.Equal(t, int32(1024), aws.ToInt32(mock.input.InferenceConfig.MaxTokens))
}

func TestInvokeOmitsInferenceConfigWhenUnset(t *testing.T) {
	mock := &mockRuntime{
		output: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "x"}},
			}},
		},
	}
	client, err := bedrock.New(bedrock.Options{Runtime: mock, Model: "m"})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), model.Request{UserMessage: "hi"})
	require.NoError(t, err)
	assert.Nil(t, mock.input.InferenceConfig)
}

func TestInvokeRateLimited(t *testing.T) {
	mock := &mockRuntime{err: &brtypes.ThrottlingException{Message: aws.String("slow down")}}
	client, err := bedrock.New(bedrock.Options{Runtime: mock, Model: "m"})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), model.Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, model.ErrRateLimited)
}

func TestInvokeNoMessageOutput(t *testing.T) {
	mock := &mockRuntime{output: &bedrockruntime.ConverseOutput{}}
	client, err := bedrock.New(bedrock.Options{Runtime: mock, Model: "m"})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), model.Request{UserMessage: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message output")
}

func TestNewValidation(t *testing.T) {
	_, err := bedrock.New(bedrock.Options{Model: "m"})
	require.Error(t, err)
	_, err = bedrock.New(bedrock.Options{Runtime: &mockRuntime{}})
	require.Error(t, err)
}
