package analyze

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

const (
	differentiationMaxTokens    = 2048
	differentiationSampleCap    = 20
	differentiationResponseClip = 1200
)

// DifferentiationAnalyzer judges how distinctly the platforms describe the
// entity versus its competitors, over a sample of the scan's responses.
type DifferentiationAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewDifferentiationAnalyzer builds the batch differentiation analyzer.
func NewDifferentiationAnalyzer(client anthropic.Client, mdl string) *DifferentiationAnalyzer {
	return &DifferentiationAnalyzer{client: client, model: mdl}
}

const differentiationSystem = `You judge how distinctly AI assistants describe an employer versus its competitors.
Respond ONLY with a JSON object:
{"competitor_confusion": 1-10, "unique_positioning": 1-10, "generic_language": 1-10, "unique_attributes": [...], "generic_phrases": [...]}
competitor_confusion: how often the answers conflate the employer with competitors (10 = constantly confused).
unique_positioning: how clearly the answers articulate what only this employer offers (10 = razor sharp).
generic_language: how much of the description could apply to any employer (10 = entirely boilerplate).
unique_attributes: phrases the answers use that are specific to this employer.
generic_phrases: boilerplate phrases that appear across answers.`

// Analyze scores differentiation across a capped sample of responses. On any
// failure it returns the neutral midpoint rather than an error, so the run
// is never blocked on this analyzer.
func (a *DifferentiationAnalyzer) Analyze(ctx context.Context, entity string, competitors []string, responses []string) model.DifferentiationAnalysis {
	if len(responses) == 0 {
		return model.NeutralDifferentiation()
	}
	if len(responses) > differentiationSampleCap {
		responses = responses[:differentiationSampleCap]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Employer: %s\n", entity)
	if len(competitors) > 0 {
		fmt.Fprintf(&b, "Known competitors: %s\n", strings.Join(competitors, ", "))
	}
	b.WriteString("\nSampled answers:\n\n")
	for i, r := range responses {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, Truncate(r, differentiationResponseClip))
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: differentiationMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(differentiationSystem),
		Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		zap.L().Warn("analyze: differentiation call failed, using neutral default", zap.Error(err))
		return model.NeutralDifferentiation()
	}
	resp.Usage.LogCost(a.model, "differentiation_analysis")

	var out model.DifferentiationAnalysis
	if err := UnmarshalModelJSON(resp.Text(), &out); err != nil {
		zap.L().Warn("analyze: differentiation output unparsable, using neutral default", zap.Error(err))
		return model.NeutralDifferentiation()
	}

	out.CompetitorConfusion = ClampRating(out.CompetitorConfusion)
	out.UniquePositioning = ClampRating(out.UniquePositioning)
	out.GenericLanguage = ClampRating(out.GenericLanguage)
	return out
}
