package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

const (
	sentimentMaxTokens    = 8192
	sentimentResponseClip = 1500
)

// SentimentItem is one response submitted to the batch sentiment analyzer.
type SentimentItem struct {
	ID       string
	Platform model.Platform
	Question string
	Response string
}

// SentimentAnalyzer scores every response of a scan in a single call so the
// scores are consistent relative to each other instead of drifting
// call-to-call against an absolute rubric.
type SentimentAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewSentimentAnalyzer builds the batch sentiment analyzer.
func NewSentimentAnalyzer(client anthropic.Client, mdl string) *SentimentAnalyzer {
	return &SentimentAnalyzer{client: client, model: mdl}
}

const sentimentSystem = `You rate how favorably AI assistants describe an employer.
You receive a numbered list of answers. Rate EVERY answer relative to the others in this batch.
Respond ONLY with a JSON array, one object per answer:
[{"id": "...", "score": 1-10, "quotes_for": ["exact quote", ...], "quotes_against": ["exact quote", ...]}]
score: 10 = glowing endorsement, 1 = actively negative. Use the full range across the batch.
quotes_for / quotes_against: 2-4 exact quotes from that answer supporting or undermining the employer. Empty arrays are fine.`

type sentimentOutput struct {
	ID            string   `json:"id"`
	Score         int      `json:"score"`
	QuotesFor     []string `json:"quotes_for"`
	QuotesAgainst []string `json:"quotes_against"`
}

// Analyze scores the whole batch. Every submitted id is present in the
// returned map: ids the model skipped, and the entire batch on total
// failure, default to the neutral {score 5, mixed} verdict so a bad
// analyzer call degrades scores instead of aborting the run.
func (a *SentimentAnalyzer) Analyze(ctx context.Context, entity string, items []SentimentItem) map[string]model.SentimentAnalysis {
	results := make(map[string]model.SentimentAnalysis, len(items))
	for _, item := range items {
		results[item.ID] = neutralSentiment()
	}
	if len(items) == 0 {
		return results
	}

	outputs, err := a.call(ctx, entity, items)
	if err != nil {
		zap.L().Warn("analyze: batch sentiment failed, defaulting all responses",
			zap.Int("responses", len(items)),
			zap.Error(err),
		)
		return results
	}

	matched := 0
	for _, out := range outputs {
		if _, submitted := results[out.ID]; !submitted {
			continue
		}
		score := ClampRating(out.Score)
		results[out.ID] = model.SentimentAnalysis{
			Score:         score,
			Category:      model.CategoryForScore(score),
			QuotesFor:     out.QuotesFor,
			QuotesAgainst: out.QuotesAgainst,
		}
		matched++
	}
	if matched < len(items) {
		zap.L().Warn("analyze: sentiment output incomplete, missing ids defaulted",
			zap.Int("submitted", len(items)),
			zap.Int("scored", matched),
		)
	}
	return results
}

func (a *SentimentAnalyzer) call(ctx context.Context, entity string, items []SentimentItem) ([]sentimentOutput, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Employer: %s\n\nAnswers to rate:\n\n", entity)
	for _, item := range items {
		fmt.Fprintf(&b, "id: %s\nplatform: %s\nquestion: %s\nanswer: %s\n\n",
			item.ID, item.Platform, item.Question, Truncate(item.Response, sentimentResponseClip))
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: sentimentMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(sentimentSystem),
		Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(a.model, "sentiment_analysis")

	raw, err := ExtractJSON(resp.Text())
	if err != nil {
		return nil, err
	}
	var outputs []sentimentOutput
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

func neutralSentiment() model.SentimentAnalysis {
	return model.SentimentAnalysis{Score: defaultRating, Category: model.SentimentMixed}
}
