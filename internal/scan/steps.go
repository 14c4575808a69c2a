package scan

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/analyze"
	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/internal/platform"
	"github.com/brandlens/scan-cli/internal/scorer"
)

// pipeline runs every step for one run. Each step persists {status,
// progress} before doing its work and checks the store for work already done
// so re-entry after a crash or retry is cheap and duplicate-free.
func (o *Orchestrator) pipeline(ctx context.Context, run *model.ScanRun) error {
	// A finished report means a previous attempt got all the way through.
	if _, err := o.deps.Store.GetReport(ctx, run.ID); err == nil {
		return o.setStatus(ctx, run.ID, model.ScanStatusComplete, progressComplete)
	}

	prompts, competitors, err := o.ensureResearch(ctx, run)
	if err != nil {
		return err
	}

	responses, err := o.ensureResponses(ctx, run, prompts, competitors)
	if err != nil {
		return err
	}

	diff, err := o.analyzeResponses(ctx, run, prompts, responses, competitors)
	if err != nil {
		return err
	}

	report, err := o.publishReport(ctx, run, responses, competitors, diff)
	if err != nil {
		return err
	}

	if err := o.setStatus(ctx, run.ID, model.ScanStatusComplete, progressComplete); err != nil {
		return err
	}

	o.enrich(ctx, run, report, responses, competitors)
	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, runID string, status model.ScanStatus, progress int) error {
	return o.deps.Store.UpdateScanProgress(ctx, runID, status, progress)
}

// ensureResearch returns the run's prompts and competitor names, producing
// them through crawl, site analysis, and question generation on the first
// pass and loading them from the store on re-entry.
func (o *Orchestrator) ensureResearch(ctx context.Context, run *model.ScanRun) ([]model.Prompt, []string, error) {
	entity := run.Entity

	count, err := o.deps.Store.CountPrompts(ctx, run.ID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "scan: count prompts")
	}
	if count > 0 {
		prompts, err := o.deps.Store.PromptsForScan(ctx, run.ID)
		if err != nil {
			return nil, nil, eris.Wrap(err, "scan: load prompts")
		}
		competitors, err := o.frozenCompetitorNames(ctx, entity)
		if err != nil {
			return nil, nil, err
		}
		return prompts, competitors, nil
	}

	if err := o.setStatus(ctx, run.ID, model.ScanStatusCrawling, progressCrawling); err != nil {
		return nil, nil, err
	}
	site := o.crawlSite(ctx, run)

	if err := o.setStatus(ctx, run.ID, model.ScanStatusAnalyzingSite, progressAnalyzingSite); err != nil {
		return nil, nil, err
	}
	profile := o.deps.Profiler.Analyze(ctx, entity, site)

	if err := o.setStatus(ctx, run.ID, model.ScanStatusResearching, progressResearching); err != nil {
		return nil, nil, err
	}
	set := o.deps.Research.Generate(ctx, entity, profile)

	prompts := make([]model.Prompt, len(set.Questions))
	for i, q := range set.Questions {
		q.ID = uuid.NewString()
		q.ScanID = run.ID
		q.Index = i
		prompts[i] = q
	}
	if err := o.deps.Store.InsertPrompts(ctx, prompts); err != nil {
		return nil, nil, eris.Wrap(err, "scan: insert prompts")
	}

	competitors := make([]string, 0, len(set.Competitors))
	for _, c := range set.Competitors {
		competitors = append(competitors, c.Name)
	}
	return prompts, competitors, nil
}

// crawlSite fetches the entity's site. Crawl failures degrade the profile
// instead of failing the run: a thin scan beats no scan.
func (o *Orchestrator) crawlSite(ctx context.Context, run *model.ScanRun) string {
	if run.Entity.Domain == "" {
		return ""
	}
	site, pages, err := o.deps.Crawler.Fetch(ctx, run.Entity.Domain)
	if err != nil {
		zap.L().Warn("scan: crawl failed, continuing with minimal profile",
			zap.String("scan_id", run.ID),
			zap.String("domain", run.Entity.Domain),
			zap.Error(err),
		)
		return ""
	}
	if o.deps.Tracker != nil {
		o.deps.Tracker.RecordFlat(ctx, run.ID, "crawling", "firecrawl",
			pages, o.deps.Tracker.Calculator().FirecrawlPages(1))
	}
	return site
}

func (o *Orchestrator) frozenCompetitorNames(ctx context.Context, entity model.Entity) ([]string, error) {
	frozen, err := o.deps.Store.FrozenCompetitors(ctx, entity.OrgID, entity.EntityID)
	if err != nil {
		return nil, eris.Wrap(err, "scan: load frozen competitors")
	}
	names := make([]string, 0, len(frozen))
	for _, c := range frozen {
		names = append(names, c.Name)
	}
	return names, nil
}

// ensureResponses fans the prompts out across every platform and persists
// the answers without sentiment. When responses already exist the fan-out is
// skipped entirely, so a retry never re-queries the platforms.
func (o *Orchestrator) ensureResponses(ctx context.Context, run *model.ScanRun, prompts []model.Prompt, competitors []string) ([]model.PlatformResponse, error) {
	if err := o.setStatus(ctx, run.ID, model.ScanStatusQuerying, progressQuerying); err != nil {
		return nil, err
	}

	count, err := o.deps.Store.CountResponses(ctx, run.ID)
	if err != nil {
		return nil, eris.Wrap(err, "scan: count responses")
	}
	if count == 0 {
		byPlatform, err := o.deps.Fanout.Run(ctx, prompts, run.Entity.Location)
		if err != nil {
			return nil, eris.Wrap(err, "scan: platform fan-out")
		}

		var responses []model.PlatformResponse
		for plat, results := range byPlatform {
			for i, res := range results {
				pos, mentioned := platform.DetectMention(res.Text, run.Entity.Name)
				responses = append(responses, model.PlatformResponse{
					ID:                   uuid.NewString(),
					ScanID:               run.ID,
					PromptID:             prompts[i].ID,
					PromptIndex:          prompts[i].Index,
					Platform:             plat,
					Text:                 res.Text,
					Mentioned:            mentioned,
					MentionPosition:      pos,
					CompetitorsMentioned: platform.DetectCompetitors(res.Text, competitors),
					Sources:              res.Sources,
					ResponseTimeMs:       res.ResponseTimeMs,
					Error:                res.Err,
				})
			}
		}
		if err := o.deps.Store.InsertResponses(ctx, responses); err != nil {
			return nil, eris.Wrap(err, "scan: insert responses")
		}
		o.recordQueryCosts(ctx, run.ID, byPlatform)
	}

	responses, err := o.deps.Store.ResponsesForScan(ctx, run.ID)
	if err != nil {
		return nil, eris.Wrap(err, "scan: load responses")
	}
	return responses, nil
}

// recordQueryCosts writes flat per-query ledger rows for the metered
// providers. Token-priced platforms log their own costs at call time.
func (o *Orchestrator) recordQueryCosts(ctx context.Context, runID string, byPlatform map[model.Platform][]platform.Result) {
	if o.deps.Tracker == nil {
		return
	}
	calc := o.deps.Tracker.Calculator()
	queries := 0
	for _, res := range byPlatform[model.PlatformPerplexity] {
		if res.OK() {
			queries++
		}
	}
	if queries > 0 {
		o.deps.Tracker.RecordFlat(ctx, runID, "querying", "perplexity", queries, calc.PerplexityQuery())
	}
}

// analyzeResponses patches sentiment in bulk, scores each answer's research
// dimensions, and judges differentiation across the whole run. Responses
// scored by a previous attempt are left untouched.
func (o *Orchestrator) analyzeResponses(ctx context.Context, run *model.ScanRun, prompts []model.Prompt, responses []model.PlatformResponse, competitors []string) (model.DifferentiationAnalysis, error) {
	if err := o.setStatus(ctx, run.ID, model.ScanStatusAnalyzing, progressAnalyzing); err != nil {
		return model.DifferentiationAnalysis{}, err
	}

	questions := make(map[string]string, len(prompts))
	for _, p := range prompts {
		questions[p.ID] = p.Text
	}

	var items []analyze.SentimentItem
	for _, r := range responses {
		if r.OK() && r.Sentiment == nil {
			items = append(items, analyze.SentimentItem{
				ID:       r.ID,
				Platform: r.Platform,
				Question: questions[r.PromptID],
				Response: r.Text,
			})
		}
	}
	if len(items) > 0 {
		sentiments := o.deps.Sentiment.Analyze(ctx, run.Entity.Name, items)
		if err := o.deps.Store.UpdateResponseSentiments(ctx, sentiments); err != nil {
			return model.DifferentiationAnalysis{}, eris.Wrap(err, "scan: patch sentiments")
		}
		for i := range responses {
			if s, ok := sentiments[responses[i].ID]; ok {
				sc := s
				responses[i].Sentiment = &sc
			}
		}
	}

	for i := range responses {
		r := &responses[i]
		if !r.OK() || r.Research != nil {
			continue
		}
		scores, insights, err := o.deps.Response.Analyze(ctx, run.Entity.Name, questions[r.PromptID], r.Text)
		if err != nil {
			zap.L().Warn("scan: research analysis failed for response",
				zap.String("scan_id", run.ID),
				zap.String("response_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		if err := o.deps.Store.UpdateResponseResearch(ctx, r.ID, scores, insights); err != nil {
			return model.DifferentiationAnalysis{}, eris.Wrap(err, "scan: patch research scores")
		}
		r.Research = &scores
		r.Insights = &insights
	}

	// Differentiation is judged once per scan; a retry reuses the stored
	// verdict instead of paying for a second analyzer call.
	if existing, err := o.deps.Store.ScanDifferentiation(ctx, run.ID); err != nil {
		return model.DifferentiationAnalysis{}, eris.Wrap(err, "scan: load differentiation")
	} else if existing != nil {
		return *existing, nil
	}

	var texts []string
	for _, r := range responses {
		if r.OK() {
			texts = append(texts, r.Text)
		}
	}
	diff := o.deps.Differentiation.Analyze(ctx, run.Entity.Name, competitors, texts)
	if err := o.deps.Store.SetScanDifferentiation(ctx, run.ID, diff); err != nil {
		return model.DifferentiationAnalysis{}, eris.Wrap(err, "scan: save differentiation")
	}
	return diff, nil
}

// publishReport computes the three headline scores and writes the report
// and its trend row.
func (o *Orchestrator) publishReport(ctx context.Context, run *model.ScanRun, responses []model.PlatformResponse, competitors []string, diff model.DifferentiationAnalysis) (*model.Report, error) {
	now := time.Now().UTC()

	platformScores := make(map[model.Platform]int, len(platform.Weights))
	for plat := range platform.Weights {
		var sentiments []model.SentimentAnalysis
		for _, r := range responses {
			if r.Platform == plat && r.Mentioned && r.Sentiment != nil {
				sentiments = append(sentiments, *r.Sentiment)
			}
		}
		platformScores[plat] = scorer.PlatformDesirability(sentiments)
	}

	covered := map[string]bool{}
	var specSum, confSum float64
	var researched int
	for _, r := range responses {
		if r.Research == nil {
			continue
		}
		researched++
		specSum += float64(r.Research.Specificity)
		confSum += float64(r.Research.Confidence)
		for _, t := range r.Research.TopicsCovered {
			covered[t] = true
		}
	}
	var avgSpec, avgConf float64
	if researched > 0 {
		avgSpec = specSum / float64(researched)
		avgConf = confSum / float64(researched)
	}

	var topicsCovered, topicsMissing []string
	for _, t := range analyze.TopicTaxonomy {
		if covered[t] {
			topicsCovered = append(topicsCovered, t)
		} else {
			topicsMissing = append(topicsMissing, t)
		}
	}

	report := &model.Report{
		ID:       uuid.NewString(),
		ScanID:   run.ID,
		OrgID:    run.Entity.OrgID,
		EntityID: run.Entity.EntityID,

		DesirabilityScore: scorer.Desirability(platformScores),
		ResearchabilityScore: scorer.Researchability(scorer.ResearchabilityInput{
			AvgSpecificity: avgSpec,
			AvgConfidence:  avgConf,
			TopicsCovered:  len(topicsCovered),
			TopicTotal:     len(analyze.TopicTaxonomy),
		}),
		DifferentiationScore: scorer.Differentiation(diff),

		TopicsCovered:   topicsCovered,
		TopicsMissing:   topicsMissing,
		TopCompetitors:  topCompetitors(responses, 5),
		PlatformScores:  platformScores,
		Differentiation: diff,

		ShareToken: uuid.NewString(),
		ExpiresAt:  now.Add(o.cfg.ReportTTL),
		CreatedAt:  now,
	}

	if err := o.deps.Store.InsertReport(ctx, report); err != nil {
		return nil, eris.Wrap(err, "scan: insert report")
	}

	history := model.ScoreHistory{
		ID:                   uuid.NewString(),
		OrgID:                run.Entity.OrgID,
		EntityID:             run.Entity.EntityID,
		ScanID:               run.ID,
		DesirabilityScore:    report.DesirabilityScore,
		ResearchabilityScore: report.ResearchabilityScore,
		DifferentiationScore: report.DifferentiationScore,
		RecordedAt:           now,
	}
	if err := o.deps.Store.InsertScoreHistory(ctx, history); err != nil {
		return nil, eris.Wrap(err, "scan: insert score history")
	}

	zap.L().Info("scan: report published",
		zap.String("scan_id", run.ID),
		zap.Int("desirability", report.DesirabilityScore),
		zap.Int("researchability", report.ResearchabilityScore),
		zap.Int("differentiation", report.DifferentiationScore),
	)
	return report, nil
}

// topCompetitors ranks competitors by how many responses mention them.
func topCompetitors(responses []model.PlatformResponse, limit int) []string {
	counts := competitorMentionCounts(responses)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

func competitorMentionCounts(responses []model.PlatformResponse) map[string]int {
	counts := map[string]int{}
	for _, r := range responses {
		for _, c := range r.CompetitorsMentioned {
			counts[c]++
		}
	}
	return counts
}
