package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brandlens/scan-cli/internal/model"
)

func TestDesirabilityWeightedAverage(t *testing.T) {
	// round((80*10 + 60*1 + 70*2 + 50*4) / 17) = round(1200/17) = 71
	scores := map[model.Platform]int{
		model.PlatformChatGPT:    80,
		model.PlatformClaude:     60,
		model.PlatformGemini:     70,
		model.PlatformPerplexity: 50,
	}
	assert.Equal(t, 71, Desirability(scores))
}

func TestDesirabilityMissingPlatformCountsAsZero(t *testing.T) {
	scores := map[model.Platform]int{
		model.PlatformChatGPT: 85,
	}
	// round(85*10/17) = 50
	assert.Equal(t, 50, Desirability(scores))
	assert.Equal(t, 0, Desirability(nil))
}

func TestPlatformDesirability(t *testing.T) {
	tests := []struct {
		name       string
		sentiments []model.SentimentAnalysis
		want       int
	}{
		{
			name: "all neutral fives",
			sentiments: []model.SentimentAnalysis{
				{Score: 5, Category: model.SentimentMixed},
				{Score: 5, Category: model.SentimentMixed},
			},
			// (5-1)/9*100 = 44.44
			want: 44,
		},
		{
			name: "strong bonus applies",
			sentiments: []model.SentimentAnalysis{
				{Score: 9, Category: model.SentimentStrong},
				{Score: 9, Category: model.SentimentStrong},
			},
			// (9-1)/9*100 + 15 = 88.89 + 15 = 103.89, clamped
			want: 100,
		},
		{
			name: "negative penalty applies",
			sentiments: []model.SentimentAnalysis{
				{Score: 2, Category: model.SentimentNegative},
				{Score: 8, Category: model.SentimentPositive},
			},
			// (5-1)/9*100 - 25*0.5 = 44.44 - 12.5 = 31.94
			want: 32,
		},
		{
			name:       "empty",
			sentiments: nil,
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlatformDesirability(tt.sentiments))
		})
	}
}

func TestResearchability(t *testing.T) {
	// 0.4*40 + 0.35*66.67 + 0.25*55.56 = 16 + 23.33 + 13.89 = 53.22 -> 53
	got := Researchability(ResearchabilityInput{
		AvgSpecificity: 7,
		AvgConfidence:  6,
		TopicsCovered:  4,
		TopicTotal:     10,
	})
	assert.Equal(t, 53, got)
}

func TestResearchabilityZeroTaxonomy(t *testing.T) {
	got := Researchability(ResearchabilityInput{
		AvgSpecificity: 5,
		AvgConfidence:  5,
		TopicsCovered:  0,
		TopicTotal:     0,
	})
	// 0.35*44.44 + 0.25*44.44 = 26.67
	assert.Equal(t, 27, got)
}

func TestDifferentiation(t *testing.T) {
	// Neutral midpoint: 0.4*55.56 + 0.35*44.44 + 0.25*55.56 = 51.67 -> 52
	assert.Equal(t, 52, Differentiation(model.NeutralDifferentiation()))

	// Best case: no confusion, fully unique, no generic language.
	best := model.DifferentiationAnalysis{
		CompetitorConfusion: 1,
		UniquePositioning:   10,
		GenericLanguage:     1,
	}
	assert.Equal(t, 100, Differentiation(best))

	// Worst case.
	worst := model.DifferentiationAnalysis{
		CompetitorConfusion: 10,
		UniquePositioning:   1,
		GenericLanguage:     10,
	}
	assert.Equal(t, 0, Differentiation(worst))
}

func TestClampBounds(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3.2))
	assert.Equal(t, 100, Clamp(104.7))
	assert.Equal(t, 53, Clamp(53.22))
	assert.Equal(t, 54, Clamp(53.5))
}
