package platform

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/perplexity"
)

// PerplexityCaller queries Perplexity. Sonar models are search-grounded on
// every call, so the grounded flag is ignored.
type PerplexityCaller struct {
	client perplexity.Client
	model  string
}

// NewPerplexityCaller creates the Perplexity adapter.
func NewPerplexityCaller(client perplexity.Client, mdl string) *PerplexityCaller {
	return &PerplexityCaller{client: client, model: mdl}
}

func (c *PerplexityCaller) Name() model.Platform { return model.PlatformPerplexity }

func (c *PerplexityCaller) Generate(ctx context.Context, prompt string, grounded bool) (string, []string, error) {
	maxTokens := 1024
	resp, err := c.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: &maxTokens,
		Messages: []perplexity.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", nil, eris.Wrap(err, "perplexity: chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", nil, eris.New("perplexity: empty choices")
	}
	return resp.Choices[0].Message.Content, resp.Citations, nil
}
