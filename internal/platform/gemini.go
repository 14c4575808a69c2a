package platform

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/brandlens/scan-cli/internal/model"
)

// GeminiCaller queries Gemini via the Google GenAI API. When grounded, the
// call attaches the native Google Search tool so answers cite live results.
type GeminiCaller struct {
	client *genai.Client
	model  string
}

// NewGeminiCaller creates the Gemini adapter.
func NewGeminiCaller(ctx context.Context, apiKey, mdl string) (*GeminiCaller, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: API key is required")
	}
	if mdl == "" {
		mdl = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &GeminiCaller{client: client, model: mdl}, nil
}

func (c *GeminiCaller) Name() model.Platform { return model.PlatformGemini }

func (c *GeminiCaller) Generate(ctx context.Context, prompt string, grounded bool) (string, []string, error) {
	var cfg *genai.GenerateContentConfig
	if grounded {
		cfg = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", nil, eris.Wrap(err, "gemini: generate content")
	}

	text := resp.Text()
	if text == "" {
		return "", nil, eris.New("gemini: empty response")
	}

	return text, groundingSources(resp), nil
}

// groundingSources extracts cited URLs from the grounding metadata, if any.
func groundingSources(resp *genai.GenerateContentResponse) []string {
	var sources []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk != nil && chunk.Web != nil && chunk.Web.URI != "" {
				sources = append(sources, chunk.Web.URI)
			}
		}
	}
	return sources
}
