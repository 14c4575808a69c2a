package model

import "time"

// Report is the finalized output of a successful scan. The headline scores
// are written when the run completes; competitor analysis, strategic summary,
// and action plans are appended by best-effort enrichment steps afterwards.
type Report struct {
	ID       string `json:"id"`
	ScanID   string `json:"scan_id"`
	OrgID    string `json:"org_id"`
	EntityID string `json:"entity_id"`

	DesirabilityScore    int `json:"desirability_score"`    // 0-100
	ResearchabilityScore int `json:"researchability_score"` // 0-100
	DifferentiationScore int `json:"differentiation_score"` // 0-100

	TopicsCovered   []string                `json:"topics_covered,omitempty"`
	TopicsMissing   []string                `json:"topics_missing,omitempty"`
	TopCompetitors  []string                `json:"top_competitors,omitempty"`
	PlatformScores  map[Platform]int        `json:"platform_scores,omitempty"`
	Differentiation DifferentiationAnalysis `json:"differentiation"`

	CompetitorAnalysis *CompetitorAnalysis `json:"competitor_analysis,omitempty"`
	StrategicSummary   string              `json:"strategic_summary,omitempty"`
	ActionPlans        []RoleActionPlan    `json:"action_plans,omitempty"`
	WebMentions        []WebMention        `json:"web_mentions,omitempty"`

	ShareToken string    `json:"share_token"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// CompetitorAnalysis compares the entity against its frozen competitors.
type CompetitorAnalysis struct {
	Summary     string             `json:"summary,omitempty"`
	Competitors []CompetitorRating `json:"competitors,omitempty"`
}

// CompetitorRating is one competitor's standing relative to the entity.
type CompetitorRating struct {
	Name          string `json:"name"`
	MentionCount  int    `json:"mention_count"`
	CompositeRank int    `json:"composite_rank"`
	Strengths     string `json:"strengths,omitempty"`
}

// RoleActionPlan holds recommended actions for one role family.
type RoleActionPlan struct {
	RoleFamily string   `json:"role_family"`
	Actions    []string `json:"actions"`
}

// WebMention is a search hit referencing the entity, collected during
// post-completion enrichment.
type WebMention struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// ScoreHistory is one append-only trend row per completed scan.
type ScoreHistory struct {
	ID                   string    `json:"id"`
	OrgID                string    `json:"org_id"`
	EntityID             string    `json:"entity_id"`
	ScanID               string    `json:"scan_id"`
	DesirabilityScore    int       `json:"desirability_score"`
	ResearchabilityScore int       `json:"researchability_score"`
	DifferentiationScore int       `json:"differentiation_score"`
	RecordedAt           time.Time `json:"recorded_at"`
}

// CompetitorHistory is one append-only trend row per competitor per scan.
type CompetitorHistory struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	EntityID      string    `json:"entity_id"`
	ScanID        string    `json:"scan_id"`
	Competitor    string    `json:"competitor"`
	MentionCount  int       `json:"mention_count"`
	CompositeRank int       `json:"composite_rank"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// CostEntry is one fire-and-forget cost ledger row.
type CostEntry struct {
	ID           string    `json:"id"`
	ScanID       string    `json:"scan_id"`
	Step         string    `json:"step"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	RecordedAt   time.Time `json:"recorded_at"`
}
