package coaching

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverseAPI struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
}

func (f *fakeConverseAPI) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func converseTextOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: text},
				},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}
}

func TestBedrockCompleteRoundTrip(t *testing.T) {
	api := &fakeConverseAPI{output: converseTextOutput("  hello from the coach  ")}
	client := NewBedrockLLMClient(api)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:  "model-id",
		System: []string{"be kind"},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: "hi"},
			{Role: ChatRoleAssistant, Content: "hello!"},
			{Role: ChatRoleUser, Content: "how am I doing?"},
		},
		MaxTokens:   512,
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello from the coach", resp.Text)
	assert.Equal(t, string(brtypes.StopReasonEndTurn), resp.StopReason)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)

	input := api.lastInput
	require.NotNil(t, input)
	assert.Equal(t, "model-id", aws.ToString(input.ModelId))
	require.Len(t, input.System, 1)
	require.Len(t, input.Messages, 3)
	assert.Equal(t, brtypes.ConversationRoleUser, input.Messages[0].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, input.Messages[1].Role)
	require.NotNil(t, input.InferenceConfig)
	assert.Equal(t, int32(512), aws.ToInt32(input.InferenceConfig.MaxTokens))
}

func TestBedrockCompleteSystemRoleFoldsIntoSystemBlocks(t *testing.T) {
	api := &fakeConverseAPI{output: converseTextOutput("ok")}
	client := NewBedrockLLMClient(api)

	_, err := client.Complete(context.Background(), LLMRequest{
		Model: "model-id",
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "stay supportive"},
			{Role: ChatRoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)

	require.Len(t, api.lastInput.System, 1)
	require.Len(t, api.lastInput.Messages, 1)
}

func TestBedrockCompleteValidation(t *testing.T) {
	client := NewBedrockLLMClient(&fakeConverseAPI{output: converseTextOutput("ok")})

	_, err := client.Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	assert.Error(t, err, "missing model id")

	_, err = client.Complete(context.Background(), LLMRequest{
		Model:    "model-id",
		Messages: []ChatMessage{{Role: "tool", Content: "hi"}},
	})
	assert.Error(t, err, "unsupported role")
}

func TestBedrockCompleteEmptyOutput(t *testing.T) {
	client := NewBedrockLLMClient(&fakeConverseAPI{output: &bedrockruntime.ConverseOutput{}})

	_, err := client.Complete(context.Background(), LLMRequest{
		Model:    "model-id",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}
