package analyze

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

// fakeAnthropicClient returns a scripted text response or error, recording
// the last request for prompt assertions.
type fakeAnthropicClient struct {
	text    string
	err     error
	lastReq anthropic.MessageRequest
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

func TestSentimentAnalyzerScoresBatch(t *testing.T) {
	client := &fakeAnthropicClient{text: `[
		{"id": "r1", "score": 9, "quotes_for": ["great pay"], "quotes_against": []},
		{"id": "r2", "score": 3, "quotes_for": [], "quotes_against": ["high turnover"]}
	]`}
	a := NewSentimentAnalyzer(client, "claude-sonnet-4-5-20250929")

	items := []SentimentItem{
		{ID: "r1", Platform: model.PlatformChatGPT, Question: "q1", Response: "great pay and culture"},
		{ID: "r2", Platform: model.PlatformGemini, Question: "q2", Response: "high turnover reported"},
	}
	results := a.Analyze(context.Background(), "Acme", items)

	require.Len(t, results, 2)
	assert.Equal(t, 9, results["r1"].Score)
	assert.Equal(t, model.SentimentStrong, results["r1"].Category)
	assert.Equal(t, []string{"great pay"}, results["r1"].QuotesFor)
	assert.Equal(t, 3, results["r2"].Score)
	assert.Equal(t, model.SentimentNegative, results["r2"].Category)
}

func TestSentimentAnalyzerDefaultsMissingIDs(t *testing.T) {
	client := &fakeAnthropicClient{text: `[{"id": "r1", "score": 8}]`}
	a := NewSentimentAnalyzer(client, "m")

	items := []SentimentItem{
		{ID: "r1", Response: "x"},
		{ID: "r2", Response: "y"},
		{ID: "r3", Response: "z"},
	}
	results := a.Analyze(context.Background(), "Acme", items)

	require.Len(t, results, 3)
	assert.Equal(t, 8, results["r1"].Score)
	for _, id := range []string{"r2", "r3"} {
		assert.Equal(t, 5, results[id].Score)
		assert.Equal(t, model.SentimentMixed, results[id].Category)
		assert.Empty(t, results[id].QuotesFor)
	}
}

func TestSentimentAnalyzerDefaultsEverythingOnFailure(t *testing.T) {
	client := &fakeAnthropicClient{err: eris.New("overloaded_error")}
	a := NewSentimentAnalyzer(client, "m")

	results := a.Analyze(context.Background(), "Acme", []SentimentItem{{ID: "r1"}, {ID: "r2"}})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 5, r.Score)
		assert.Equal(t, model.SentimentMixed, r.Category)
	}
}

func TestSentimentAnalyzerIgnoresUnknownIDsAndClamps(t *testing.T) {
	client := &fakeAnthropicClient{text: `[
		{"id": "r1", "score": 99},
		{"id": "hallucinated", "score": 10}
	]`}
	a := NewSentimentAnalyzer(client, "m")

	results := a.Analyze(context.Background(), "Acme", []SentimentItem{{ID: "r1"}})

	require.Len(t, results, 1)
	assert.Equal(t, 10, results["r1"].Score)
}

func TestDifferentiationAnalyzer(t *testing.T) {
	client := &fakeAnthropicClient{text: `{
		"competitor_confusion": 3,
		"unique_positioning": 8,
		"generic_language": 4,
		"unique_attributes": ["robotics apprenticeship"],
		"generic_phrases": ["great place to work"]
	}`}
	a := NewDifferentiationAnalyzer(client, "m")

	got := a.Analyze(context.Background(), "Acme", []string{"Globex"}, []string{"resp one", "resp two"})

	assert.Equal(t, 3, got.CompetitorConfusion)
	assert.Equal(t, 8, got.UniquePositioning)
	assert.Equal(t, 4, got.GenericLanguage)
	assert.Equal(t, []string{"robotics apprenticeship"}, got.UniqueAttributes)
	assert.Contains(t, client.lastReq.Messages[0].Content, "Globex")
}

func TestDifferentiationAnalyzerNeutralOnFailure(t *testing.T) {
	a := NewDifferentiationAnalyzer(&fakeAnthropicClient{err: eris.New("boom")}, "m")
	got := a.Analyze(context.Background(), "Acme", nil, []string{"resp"})
	assert.Equal(t, model.NeutralDifferentiation(), got)

	a = NewDifferentiationAnalyzer(&fakeAnthropicClient{text: "no json here"}, "m")
	got = a.Analyze(context.Background(), "Acme", nil, []string{"resp"})
	assert.Equal(t, model.NeutralDifferentiation(), got)
}

func TestDifferentiationAnalyzerCapsSample(t *testing.T) {
	client := &fakeAnthropicClient{text: `{"competitor_confusion": 5, "unique_positioning": 5, "generic_language": 5}`}
	a := NewDifferentiationAnalyzer(client, "m")

	responses := make([]string, 30)
	for i := range responses {
		responses[i] = "answer"
	}
	a.Analyze(context.Background(), "Acme", nil, responses)

	assert.Contains(t, client.lastReq.Messages[0].Content, "20. answer")
	assert.NotContains(t, client.lastReq.Messages[0].Content, "21. answer")
}

func TestResearchAnalyzerStructuredOutput(t *testing.T) {
	client := &fakeAnthropicClient{text: `{
		"specificity": 7,
		"confidence": 6,
		"topics_covered": ["culture", "Compensation", "culture", "made_up_topic"],
		"highlights": ["strong apprenticeship program"],
		"flags": ["below-market equity"],
		"recommendation": "Publish salary bands."
	}`}
	a := NewResearchAnalyzer(client, "claude-haiku-4-5-20251001")

	scores, insights, err := a.Analyze(context.Background(), "Acme", "What is it like to work at Acme?", "Some answer")
	require.NoError(t, err)

	assert.Equal(t, 7, scores.Specificity)
	assert.Equal(t, 6, scores.Confidence)
	assert.Equal(t, []string{"culture", "compensation"}, scores.TopicsCovered)
	assert.Equal(t, []string{"strong apprenticeship program"}, insights.Highlights)
	assert.Equal(t, "Publish salary bands.", insights.Recommendation)
}

func TestResearchAnalyzerLineFallback(t *testing.T) {
	client := &fakeAnthropicClient{text: "SPECIFICITY: 8\nCONFIDENCE: 4\nTOPICS: benefits, leadership"}
	a := NewResearchAnalyzer(client, "m")

	scores, _, err := a.Analyze(context.Background(), "Acme", "q", "answer")
	require.NoError(t, err)

	assert.Equal(t, 8, scores.Specificity)
	assert.Equal(t, 4, scores.Confidence)
	assert.Equal(t, []string{"benefits", "leadership"}, scores.TopicsCovered)
}

func TestResearchAnalyzerPropagatesCallError(t *testing.T) {
	a := NewResearchAnalyzer(&fakeAnthropicClient{err: eris.New("boom")}, "m")
	_, _, err := a.Analyze(context.Background(), "Acme", "q", "answer")
	assert.Error(t, err)
}
