// Package scorer computes the three headline report scores from aggregated
// response and analysis data. Everything here is pure arithmetic with no I/O,
// so the same inputs always produce the same report numbers.
package scorer

import (
	"math"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/internal/platform"
)

// Blend weights shared by the researchability and differentiation scores.
const (
	weightPrimary   = 0.40
	weightSecondary = 0.35
	weightTertiary  = 0.25
)

// Desirability bonuses applied on top of the normalized sentiment average.
const (
	strongBonus     = 15.0
	negativePenalty = 25.0
)

// Normalize maps a 1-10 rating onto the 0-100 scale.
func Normalize(avg float64) float64 {
	return (avg - 1) / 9 * 100
}

// Invert maps a 1-10 rating where higher is worse onto a 0-100 scale where
// higher is better.
func Invert(avg float64) float64 {
	return (10 - avg) / 9 * 100
}

// Clamp rounds to the nearest integer and bounds the result to [0,100].
func Clamp(score float64) int {
	n := int(math.Round(score))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// PlatformDesirability scores one platform from its sentiment analyses:
// the normalized average sentiment, plus a bonus proportional to the share
// of strong responses, minus a penalty proportional to the share of
// negative ones.
func PlatformDesirability(sentiments []model.SentimentAnalysis) int {
	if len(sentiments) == 0 {
		return 0
	}

	var sum float64
	strong, negative := 0, 0
	for _, s := range sentiments {
		sum += float64(s.Score)
		switch s.Category {
		case model.SentimentStrong:
			strong++
		case model.SentimentNegative:
			negative++
		}
	}

	n := float64(len(sentiments))
	score := Normalize(sum/n) +
		strongBonus*(float64(strong)/n) -
		negativePenalty*(float64(negative)/n)
	return Clamp(score)
}

// Desirability combines per-platform scores into the overall 0-100 score
// using the fixed market-share weights. Platforms absent from the map
// contribute zero at full weight, so a platform outage drags the score down
// rather than being silently excluded.
func Desirability(platformScores map[model.Platform]int) int {
	if len(platformScores) == 0 {
		return 0
	}

	var weighted float64
	for p, w := range platform.Weights {
		weighted += float64(platformScores[p]) * float64(w)
	}
	return Clamp(weighted / platform.TotalWeight)
}

// ResearchabilityInput aggregates the per-response research scores for a run.
type ResearchabilityInput struct {
	AvgSpecificity float64 // 1-10
	AvgConfidence  float64 // 1-10
	TopicsCovered  int
	TopicTotal     int
}

// Researchability blends topic breadth (40%), specificity (35%) and
// confidence (25%) into the awareness score.
func Researchability(in ResearchabilityInput) int {
	var breadth float64
	if in.TopicTotal > 0 {
		breadth = float64(in.TopicsCovered) / float64(in.TopicTotal) * 100
	}

	score := weightPrimary*breadth +
		weightSecondary*Normalize(in.AvgSpecificity) +
		weightTertiary*Normalize(in.AvgConfidence)
	return Clamp(score)
}

// Differentiation blends inverted competitor confusion (40%), unique
// positioning (35%) and inverted generic language (25%). Confusion and
// generic language are 1-10 higher-is-worse ratings, so they are inverted
// before blending.
func Differentiation(d model.DifferentiationAnalysis) int {
	score := weightPrimary*Invert(float64(d.CompetitorConfusion)) +
		weightSecondary*Normalize(float64(d.UniquePositioning)) +
		weightTertiary*Invert(float64(d.GenericLanguage))
	return Clamp(score)
}
