package platform

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rotisserie/eris"

	"github.com/brandlens/scan-cli/internal/model"
)

const openaiMaxTokens = 1024

// OpenAICaller queries ChatGPT via the OpenAI chat completions API.
type OpenAICaller struct {
	client *openai.Client
	model  string
}

// NewOpenAICaller creates the ChatGPT adapter.
func NewOpenAICaller(apiKey, mdl string) *OpenAICaller {
	if mdl == "" {
		mdl = "gpt-4o"
	}
	return &OpenAICaller{client: openai.NewClient(apiKey), model: mdl}
}

func (c *OpenAICaller) Name() model.Platform { return model.PlatformChatGPT }

func (c *OpenAICaller) Generate(ctx context.Context, prompt string, grounded bool) (string, []string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens.
	if strings.HasPrefix(c.model, "o1") || strings.HasPrefix(c.model, "o3") ||
		strings.HasPrefix(c.model, "o4") || strings.HasPrefix(c.model, "gpt-5") {
		req.MaxCompletionTokens = openaiMaxTokens
	} else {
		req.MaxTokens = openaiMaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", nil, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", nil, eris.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil, nil
}
