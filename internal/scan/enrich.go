package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/analyze"
	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

const (
	enrichMaxTokens = 2048
	maxWebMentions  = 5
	maxActionRoles  = 3
)

// enrich appends the optional report sections after the run is already
// complete. Every sub-step is best effort: failures are logged and swallowed
// so enrichment can never un-complete a scan.
func (o *Orchestrator) enrich(ctx context.Context, run *model.ScanRun, report *model.Report, responses []model.PlatformResponse, competitors []string) {
	o.enrichCompetitors(ctx, run, responses, competitors)
	o.enrichWebMentions(ctx, run)
	o.enrichStrategicSummary(ctx, run, report)
	o.enrichActionPlans(ctx, run, report)
}

// enrichCompetitors ranks the competitors by mention count and records the
// per-competitor trend rows.
func (o *Orchestrator) enrichCompetitors(ctx context.Context, run *model.ScanRun, responses []model.PlatformResponse, competitors []string) {
	counts := competitorMentionCounts(responses)
	if len(competitors) == 0 && len(counts) == 0 {
		return
	}

	ranked := topCompetitors(responses, len(counts))
	analysis := &model.CompetitorAnalysis{}
	now := time.Now().UTC()
	history := make([]model.CompetitorHistory, 0, len(ranked))
	for rank, name := range ranked {
		analysis.Competitors = append(analysis.Competitors, model.CompetitorRating{
			Name:          name,
			MentionCount:  counts[name],
			CompositeRank: rank + 1,
		})
		history = append(history, model.CompetitorHistory{
			ID:            uuid.NewString(),
			OrgID:         run.Entity.OrgID,
			EntityID:      run.Entity.EntityID,
			ScanID:        run.ID,
			Competitor:    name,
			MentionCount:  counts[name],
			CompositeRank: rank + 1,
			RecordedAt:    now,
		})
	}
	if len(ranked) > 0 {
		analysis.Summary = fmt.Sprintf("%s appeared most often alongside %s across the scanned answers.",
			run.Entity.Name, ranked[0])
	}

	if err := o.deps.Store.SetReportCompetitorAnalysis(ctx, run.ID, analysis); err != nil {
		zap.L().Warn("scan: competitor analysis enrichment failed",
			zap.String("scan_id", run.ID), zap.Error(err))
		return
	}
	if err := o.deps.Store.InsertCompetitorHistory(ctx, history); err != nil {
		zap.L().Warn("scan: competitor history insert failed",
			zap.String("scan_id", run.ID), zap.Error(err))
	}
}

// enrichWebMentions searches the open web for recent employer coverage.
func (o *Orchestrator) enrichWebMentions(ctx context.Context, run *model.ScanRun) {
	if o.deps.Search == nil {
		return
	}
	query := fmt.Sprintf("%q employer reviews", run.Entity.Name)
	resp, err := o.deps.Search.Search(ctx, query)
	if err != nil {
		zap.L().Warn("scan: web mention search failed",
			zap.String("scan_id", run.ID), zap.Error(err))
		return
	}
	if o.deps.Tracker != nil {
		o.deps.Tracker.RecordFlat(ctx, run.ID, "enrichment", "jina",
			1, o.deps.Tracker.Calculator().JinaQuery())
	}

	var mentions []model.WebMention
	for _, r := range resp.Data {
		if len(mentions) >= maxWebMentions {
			break
		}
		mentions = append(mentions, model.WebMention{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: analyze.Truncate(firstNonEmpty(r.Description, r.Content), 300),
		})
	}
	if len(mentions) == 0 {
		return
	}
	if err := o.deps.Store.SetReportWebMentions(ctx, run.ID, mentions); err != nil {
		zap.L().Warn("scan: web mention enrichment failed",
			zap.String("scan_id", run.ID), zap.Error(err))
	}
}

const summarySystem = `You advise employers on their AI visibility.
Given scan scores and topic coverage, write a 4-6 sentence strategic summary:
what stands out, the biggest gap, and the single highest-leverage fix.
Plain prose, no headings, no bullet points.`

// enrichStrategicSummary asks the model for a short executive read of the
// scores.
func (o *Orchestrator) enrichStrategicSummary(ctx context.Context, run *model.ScanRun, report *model.Report) {
	if o.deps.LLM == nil {
		return
	}
	prompt := fmt.Sprintf(
		"Employer: %s\nDesirability: %d/100\nResearchability: %d/100\nDifferentiation: %d/100\nTopics covered: %s\nTopics missing: %s\nTop competitors: %s",
		run.Entity.Name,
		report.DesirabilityScore,
		report.ResearchabilityScore,
		report.DifferentiationScore,
		strings.Join(report.TopicsCovered, ", "),
		strings.Join(report.TopicsMissing, ", "),
		strings.Join(report.TopCompetitors, ", "),
	)

	resp, err := o.deps.LLM.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.deps.Model,
		MaxTokens: enrichMaxTokens,
		System:    []anthropic.SystemBlock{{Text: summarySystem}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("scan: strategic summary failed",
			zap.String("scan_id", run.ID), zap.Error(err))
		return
	}
	resp.Usage.LogCost(o.deps.Model, "strategic_summary")

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return
	}
	if err := o.deps.Store.SetReportStrategicSummary(ctx, run.ID, summary); err != nil {
		zap.L().Warn("scan: strategic summary enrichment failed",
			zap.String("scan_id", run.ID), zap.Error(err))
	}
}

const actionPlanSystem = `You advise employers on attracting specific roles.
Respond ONLY with a JSON array of 3-5 concrete actions the employer should
take to look better to AI assistants answering candidates in this role.
Example: ["Publish salary bands for senior engineers", ...]`

// enrichActionPlans generates per-role recommendations for the frozen role
// families, capped to keep enrichment cheap.
func (o *Orchestrator) enrichActionPlans(ctx context.Context, run *model.ScanRun, report *model.Report) {
	if o.deps.LLM == nil {
		return
	}
	roles, err := o.deps.Store.FrozenRoleFamilies(ctx, run.Entity.OrgID, run.Entity.EntityID)
	if err != nil || len(roles) == 0 {
		return
	}
	if len(roles) > maxActionRoles {
		roles = roles[:maxActionRoles]
	}

	var plans []model.RoleActionPlan
	for _, role := range roles {
		prompt := fmt.Sprintf("Employer: %s\nRole family: %s\nTopics missing from AI answers: %s",
			run.Entity.Name, role.Name, strings.Join(report.TopicsMissing, ", "))

		resp, err := o.deps.LLM.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     o.deps.Model,
			MaxTokens: enrichMaxTokens,
			System:    []anthropic.SystemBlock{{Text: actionPlanSystem}},
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			zap.L().Warn("scan: action plan call failed",
				zap.String("scan_id", run.ID),
				zap.String("role", role.Name),
				zap.Error(err),
			)
			continue
		}
		resp.Usage.LogCost(o.deps.Model, "action_plan")

		var actions []string
		if err := analyze.UnmarshalModelJSON(resp.Text(), &actions); err != nil || len(actions) == 0 {
			continue
		}
		plans = append(plans, model.RoleActionPlan{RoleFamily: role.Name, Actions: actions})
	}
	if len(plans) == 0 {
		return
	}
	if err := o.deps.Store.SetReportActionPlans(ctx, run.ID, plans); err != nil {
		zap.L().Warn("scan: action plan enrichment failed",
			zap.String("scan_id", run.ID), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
