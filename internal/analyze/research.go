package analyze

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

// TopicTaxonomy is the fixed set of employer-brand topics counted by the
// awareness score. Breadth is distinct topics mentioned over this total.
var TopicTaxonomy = []string{
	"compensation",
	"benefits",
	"culture",
	"career_growth",
	"leadership",
	"work_life_balance",
	"hiring_process",
	"reputation",
	"technology",
	"diversity",
}

const researchMaxTokens = 1024

// ResearchAnalyzer scores one response at a time for specificity, confidence
// and topic coverage, and extracts highlights, flags and a recommendation.
type ResearchAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewResearchAnalyzer builds the per-response analyzer. mdl is typically the
// cheap haiku-class model since a scan issues one call per response.
func NewResearchAnalyzer(client anthropic.Client, mdl string) *ResearchAnalyzer {
	return &ResearchAnalyzer{client: client, model: mdl}
}

type researchOutput struct {
	Specificity    int      `json:"specificity"`
	Confidence     int      `json:"confidence"`
	TopicsCovered  []string `json:"topics_covered"`
	Highlights     []string `json:"highlights"`
	Flags          []string `json:"flags"`
	Recommendation string   `json:"recommendation"`
}

const researchSystem = `You evaluate how well an AI assistant's answer covers a specific employer.
Respond ONLY with a JSON object:
{"specificity": 1-10, "confidence": 1-10, "topics_covered": [...], "highlights": [...], "flags": [...], "recommendation": "..."}
specificity: how concrete and entity-specific the answer is (10 = names facts unique to this employer).
confidence: how certain the answer sounds about this employer (10 = authoritative, 1 = guessing).
topics_covered: subset of: %s.
highlights: up to 3 notable positives quoted or paraphrased from the answer.
flags: up to 3 concerns or negatives.
recommendation: one sentence on what the employer should fix or amplify.`

// Analyze scores a single response. Parsing failures fall back to the
// line-based format and then to neutral defaults, so the step never fails on
// a single malformed output.
func (a *ResearchAnalyzer) Analyze(ctx context.Context, entity, question, response string) (model.ResearchScores, model.ResponseInsights, error) {
	system := fmt.Sprintf(researchSystem, strings.Join(TopicTaxonomy, ", "))
	prompt := fmt.Sprintf("Employer: %s\nQuestion: %s\n\nAnswer to evaluate:\n%s", entity, question, Truncate(response, 4000))

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: researchMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(system),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return model.ResearchScores{}, model.ResponseInsights{}, err
	}
	resp.Usage.LogCost(a.model, "research_analysis")

	text := resp.Text()
	var out researchOutput
	if err := UnmarshalModelJSON(text, &out); err != nil {
		zap.L().Debug("analyze: research JSON parse failed, trying line format", zap.Error(err))
		return parseResearchLines(text), model.ResponseInsights{}, nil
	}

	scores := model.ResearchScores{
		Specificity:   ClampRating(out.Specificity),
		Confidence:    ClampRating(out.Confidence),
		TopicsCovered: knownTopics(out.TopicsCovered),
	}
	insights := model.ResponseInsights{
		Highlights:     out.Highlights,
		Flags:          out.Flags,
		Recommendation: out.Recommendation,
	}
	return scores, insights, nil
}

// parseResearchLines handles the degraded `SPECIFICITY: 7` line format.
func parseResearchLines(text string) model.ResearchScores {
	ratings := ParseRatingLines(text, "specificity", "confidence")
	return model.ResearchScores{
		Specificity:   ratings["SPECIFICITY"],
		Confidence:    ratings["CONFIDENCE"],
		TopicsCovered: knownTopics(ParseListLine(text, "topics")),
	}
}

// knownTopics filters model output down to the fixed taxonomy, deduplicated.
func knownTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	var out []string
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, " ", "_")))
		if seen[t] {
			continue
		}
		for _, known := range TopicTaxonomy {
			if t == known {
				seen[t] = true
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Truncate bounds text to max bytes for prompt assembly.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	// Back up to a rune boundary so a multibyte character is never split.
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
