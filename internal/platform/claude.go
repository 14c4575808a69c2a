package platform

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

const claudeMaxTokens = 1024

// ClaudeCaller queries Claude via the Anthropic messages API.
type ClaudeCaller struct {
	client anthropic.Client
	model  string
}

// NewClaudeCaller creates the Claude adapter.
func NewClaudeCaller(client anthropic.Client, mdl string) *ClaudeCaller {
	return &ClaudeCaller{client: client, model: mdl}
}

func (c *ClaudeCaller) Name() model.Platform { return model.PlatformClaude }

func (c *ClaudeCaller) Generate(ctx context.Context, prompt string, grounded bool) (string, []string, error) {
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", nil, eris.Wrap(err, "claude: create message")
	}
	text := resp.Text()
	if text == "" {
		return "", nil, eris.New("claude: empty response")
	}
	return text, nil, nil
}
