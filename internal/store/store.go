// Package store persists scans, prompts, responses, reports, frozen sets,
// trend history and the cost ledger. Two implementations exist: Postgres for
// deployments and SQLite for local single-binary use.
package store

import (
	"context"

	"github.com/brandlens/scan-cli/internal/model"
)

// ScanFilter specifies criteria for listing scans.
type ScanFilter struct {
	Status   model.ScanStatus `json:"status,omitempty"`
	OrgID    string           `json:"org_id,omitempty"`
	EntityID string           `json:"entity_id,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scan pipeline.
type Store interface {
	// Scans
	CreateScan(ctx context.Context, entity model.Entity) (*model.ScanRun, error)
	GetScan(ctx context.Context, scanID string) (*model.ScanRun, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRun, error)
	UpdateScanProgress(ctx context.Context, scanID string, status model.ScanStatus, progress int) error
	FailScan(ctx context.Context, scanID, message string) error
	SetScanDifferentiation(ctx context.Context, scanID string, diff model.DifferentiationAnalysis) error
	ScanDifferentiation(ctx context.Context, scanID string) (*model.DifferentiationAnalysis, error)

	// Prompts
	InsertPrompts(ctx context.Context, prompts []model.Prompt) error
	PromptsForScan(ctx context.Context, scanID string) ([]model.Prompt, error)
	CountPrompts(ctx context.Context, scanID string) (int, error)

	// Responses
	InsertResponses(ctx context.Context, responses []model.PlatformResponse) error
	ResponsesForScan(ctx context.Context, scanID string) ([]model.PlatformResponse, error)
	CountResponses(ctx context.Context, scanID string) (int, error)
	CountScoredResponses(ctx context.Context, scanID string) (int, error)
	UpdateResponseSentiments(ctx context.Context, sentiments map[string]model.SentimentAnalysis) error
	UpdateResponseResearch(ctx context.Context, responseID string, research model.ResearchScores, insights model.ResponseInsights) error

	// Reports
	InsertReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, scanID string) (*model.Report, error)
	GetReportByShareToken(ctx context.Context, token string) (*model.Report, error)
	SetReportCompetitorAnalysis(ctx context.Context, scanID string, analysis *model.CompetitorAnalysis) error
	SetReportStrategicSummary(ctx context.Context, scanID, summary string) error
	SetReportActionPlans(ctx context.Context, scanID string, plans []model.RoleActionPlan) error
	SetReportWebMentions(ctx context.Context, scanID string, mentions []model.WebMention) error

	// Frozen sets
	FrozenQuestions(ctx context.Context, orgID, entityID string) ([]model.FrozenQuestion, error)
	FrozenCompetitors(ctx context.Context, orgID, entityID string) ([]model.FrozenCompetitor, error)
	FrozenRoleFamilies(ctx context.Context, orgID, entityID string) ([]model.FrozenRoleFamily, error)
	SaveFrozenSet(ctx context.Context, orgID, entityID string, questions []model.FrozenQuestion, competitors []model.FrozenCompetitor, roles []model.FrozenRoleFamily) error
	Unfreeze(ctx context.Context, orgID, entityID string) error

	// Trend history
	InsertScoreHistory(ctx context.Context, row model.ScoreHistory) error
	InsertCompetitorHistory(ctx context.Context, rows []model.CompetitorHistory) error
	ScoreHistory(ctx context.Context, orgID, entityID string, limit int) ([]model.ScoreHistory, error)

	// Cost ledger
	InsertCostEntry(ctx context.Context, entry model.CostEntry) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// reportBody bundles the report fields persisted as one JSON column.
type reportBody struct {
	TopicsCovered   []string                      `json:"topics_covered,omitempty"`
	TopicsMissing   []string                      `json:"topics_missing,omitempty"`
	TopCompetitors  []string                      `json:"top_competitors,omitempty"`
	PlatformScores  map[model.Platform]int        `json:"platform_scores,omitempty"`
	Differentiation model.DifferentiationAnalysis `json:"differentiation"`
}

func bodyFromReport(r *model.Report) reportBody {
	return reportBody{
		TopicsCovered:   r.TopicsCovered,
		TopicsMissing:   r.TopicsMissing,
		TopCompetitors:  r.TopCompetitors,
		PlatformScores:  r.PlatformScores,
		Differentiation: r.Differentiation,
	}
}

func (b reportBody) apply(r *model.Report) {
	r.TopicsCovered = b.TopicsCovered
	r.TopicsMissing = b.TopicsMissing
	r.TopCompetitors = b.TopCompetitors
	r.PlatformScores = b.PlatformScores
	r.Differentiation = b.Differentiation
}
