package model

// Platform identifies an AI chat platform queried by the fan-out.
type Platform string

const (
	PlatformChatGPT    Platform = "chatgpt"
	PlatformClaude     Platform = "claude"
	PlatformGemini     Platform = "gemini"
	PlatformPerplexity Platform = "perplexity"
)

// AllPlatforms returns the platforms queried by every scan, in fan-out order.
func AllPlatforms() []Platform {
	return []Platform{PlatformChatGPT, PlatformClaude, PlatformGemini, PlatformPerplexity}
}

// SentimentCategory buckets a 1-10 sentiment score.
type SentimentCategory string

const (
	SentimentStrong   SentimentCategory = "strong"
	SentimentPositive SentimentCategory = "positive"
	SentimentMixed    SentimentCategory = "mixed"
	SentimentNegative SentimentCategory = "negative"
)

// CategoryForScore maps a sentiment score to its category using the fixed
// thresholds: strong>=9, positive>=6, mixed>=4, negative<4.
func CategoryForScore(score int) SentimentCategory {
	switch {
	case score >= 9:
		return SentimentStrong
	case score >= 6:
		return SentimentPositive
	case score >= 4:
		return SentimentMixed
	default:
		return SentimentNegative
	}
}

// SentimentAnalysis is the batch sentiment analyzer's verdict for one response.
type SentimentAnalysis struct {
	Score         int               `json:"score"` // 1-10
	Category      SentimentCategory `json:"category"`
	QuotesFor     []string          `json:"quotes_for,omitempty"`
	QuotesAgainst []string          `json:"quotes_against,omitempty"`
}

// ResearchScores holds the per-response researchability dimensions.
type ResearchScores struct {
	Specificity   int      `json:"specificity"` // 1-10
	Confidence    int      `json:"confidence"`  // 1-10
	TopicsCovered []string `json:"topics_covered,omitempty"`
}

// ResponseInsights is the enhanced-extraction output for one response:
// notable positives, concerns, and a one-line recommendation.
type ResponseInsights struct {
	Highlights     []string `json:"highlights,omitempty"`
	Flags          []string `json:"flags,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// PlatformResponse is one platform's answer to one prompt within a scan.
// Inserted once by the query step without sentiment; the batch sentiment
// step patches Sentiment in bulk afterwards.
type PlatformResponse struct {
	ID                   string   `json:"id"`
	ScanID               string   `json:"scan_id"`
	PromptID             string   `json:"prompt_id"`
	PromptIndex          int      `json:"prompt_index"`
	Platform             Platform `json:"platform"`
	Text                 string   `json:"text"`
	Mentioned            bool     `json:"mentioned"`
	MentionPosition      int      `json:"mention_position"` // byte offset of first mention, -1 if absent
	CompetitorsMentioned []string `json:"competitors_mentioned,omitempty"`
	Sources              []string `json:"sources,omitempty"`
	ResponseTimeMs       int64    `json:"response_time_ms"`
	Error                string   `json:"error,omitempty"`

	Sentiment *SentimentAnalysis `json:"sentiment,omitempty"`
	Research  *ResearchScores    `json:"research,omitempty"`
	Insights  *ResponseInsights  `json:"insights,omitempty"`
}

// OK reports whether the response carries usable text (every fallback tier
// did not fail).
func (r PlatformResponse) OK() bool {
	return r.Error == "" && r.Text != ""
}

// DifferentiationAnalysis is the batch differentiation analyzer's output for
// a whole scan. All scores are 1-10; confusion and generic are
// higher-is-worse, positioning is higher-is-better.
type DifferentiationAnalysis struct {
	CompetitorConfusion int      `json:"competitor_confusion"`
	UniquePositioning   int      `json:"unique_positioning"`
	GenericLanguage     int      `json:"generic_language"`
	UniqueAttributes    []string `json:"unique_attributes,omitempty"`
	GenericPhrases      []string `json:"generic_phrases,omitempty"`
}

// NeutralDifferentiation is the midpoint default used when the analyzer
// fails outright.
func NeutralDifferentiation() DifferentiationAnalysis {
	return DifferentiationAnalysis{CompetitorConfusion: 5, UniquePositioning: 5, GenericLanguage: 5}
}
