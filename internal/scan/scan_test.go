package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/scan-cli/internal/analyze"
	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/internal/platform"
	"github.com/brandlens/scan-cli/internal/store"
)

// memStore is an in-memory Store for orchestrator tests. It records every
// status transition so tests can assert the pipeline order.
type memStore struct {
	mu        sync.Mutex
	nextID    int
	scans     map[string]*model.ScanRun
	statuses  map[string][]model.ScanStatus
	prompts   map[string][]model.Prompt
	responses map[string][]model.PlatformResponse
	reports   map[string]*model.Report
	diffs     map[string]*model.DifferentiationAnalysis

	// reportInsertFailures fails that many InsertReport calls before
	// letting one through, to exercise the retry path.
	reportInsertFailures int

	frozenC map[string][]model.FrozenCompetitor
	frozenR map[string][]model.FrozenRoleFamily

	scoreHistory      []model.ScoreHistory
	competitorHistory []model.CompetitorHistory
	costs             []model.CostEntry
}

func newMemStore() *memStore {
	return &memStore{
		scans:     map[string]*model.ScanRun{},
		statuses:  map[string][]model.ScanStatus{},
		prompts:   map[string][]model.Prompt{},
		responses: map[string][]model.PlatformResponse{},
		reports:   map[string]*model.Report{},
		diffs:     map[string]*model.DifferentiationAnalysis{},
		frozenC:   map[string][]model.FrozenCompetitor{},
		frozenR:   map[string][]model.FrozenRoleFamily{},
	}
}

func (m *memStore) CreateScan(_ context.Context, entity model.Entity) (*model.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run := &model.ScanRun{
		ID:        fmt.Sprintf("scan-%d", m.nextID),
		Entity:    entity,
		Status:    model.ScanStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	m.scans[run.ID] = run
	cp := *run
	return &cp, nil
}

func (m *memStore) GetScan(_ context.Context, scanID string) (*model.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.scans[scanID]
	if !ok {
		return nil, errors.New("scan not found")
	}
	cp := *run
	return &cp, nil
}

func (m *memStore) ListScans(_ context.Context, filter store.ScanFilter) ([]model.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScanRun
	for _, run := range m.scans {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, *run)
	}
	return out, nil
}

func (m *memStore) UpdateScanProgress(_ context.Context, scanID string, status model.ScanStatus, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.scans[scanID]
	if !ok {
		return errors.New("scan not found")
	}
	run.Status = status
	run.Progress = progress
	m.statuses[scanID] = append(m.statuses[scanID], status)
	return nil
}

func (m *memStore) FailScan(_ context.Context, scanID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.scans[scanID]
	if !ok {
		return errors.New("scan not found")
	}
	run.Status = model.ScanStatusFailed
	run.Error = message
	m.statuses[scanID] = append(m.statuses[scanID], model.ScanStatusFailed)
	return nil
}

func (m *memStore) SetScanDifferentiation(_ context.Context, scanID string, diff model.DifferentiationAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scans[scanID]; !ok {
		return errors.New("scan not found")
	}
	cp := diff
	m.diffs[scanID] = &cp
	return nil
}

func (m *memStore) ScanDifferentiation(_ context.Context, scanID string) (*model.DifferentiationAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scans[scanID]; !ok {
		return nil, errors.New("scan not found")
	}
	d, ok := m.diffs[scanID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) InsertPrompts(_ context.Context, prompts []model.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range prompts {
		m.prompts[p.ScanID] = append(m.prompts[p.ScanID], p)
	}
	return nil
}

func (m *memStore) PromptsForScan(_ context.Context, scanID string) ([]model.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.Prompt(nil), m.prompts[scanID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *memStore) CountPrompts(_ context.Context, scanID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts[scanID]), nil
}

func (m *memStore) InsertResponses(_ context.Context, responses []model.PlatformResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.responses[r.ScanID] = append(m.responses[r.ScanID], r)
	}
	return nil
}

func (m *memStore) ResponsesForScan(_ context.Context, scanID string) ([]model.PlatformResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PlatformResponse(nil), m.responses[scanID]...), nil
}

func (m *memStore) CountResponses(_ context.Context, scanID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses[scanID]), nil
}

func (m *memStore) CountScoredResponses(_ context.Context, scanID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.responses[scanID] {
		if r.Sentiment != nil {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateResponseSentiments(_ context.Context, sentiments map[string]model.SentimentAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scanID, responses := range m.responses {
		for i := range responses {
			if s, ok := sentiments[responses[i].ID]; ok {
				sc := s
				responses[i].Sentiment = &sc
			}
		}
		m.responses[scanID] = responses
	}
	return nil
}

func (m *memStore) UpdateResponseResearch(_ context.Context, responseID string, research model.ResearchScores, insights model.ResponseInsights) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scanID, responses := range m.responses {
		for i := range responses {
			if responses[i].ID == responseID {
				r, in := research, insights
				responses[i].Research = &r
				responses[i].Insights = &in
			}
		}
		m.responses[scanID] = responses
	}
	return nil
}

func (m *memStore) InsertReport(_ context.Context, report *model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reportInsertFailures > 0 {
		m.reportInsertFailures--
		return errors.New("report insert failed")
	}
	cp := *report
	m.reports[report.ScanID] = &cp
	return nil
}

func (m *memStore) GetReport(_ context.Context, scanID string) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[scanID]
	if !ok {
		return nil, errors.New("report not found")
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetReportByShareToken(_ context.Context, token string) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.ShareToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.New("report not found")
}

func (m *memStore) SetReportCompetitorAnalysis(_ context.Context, scanID string, analysis *model.CompetitorAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[scanID]
	if !ok {
		return errors.New("report not found")
	}
	r.CompetitorAnalysis = analysis
	return nil
}

func (m *memStore) SetReportStrategicSummary(_ context.Context, scanID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[scanID]
	if !ok {
		return errors.New("report not found")
	}
	r.StrategicSummary = summary
	return nil
}

func (m *memStore) SetReportActionPlans(_ context.Context, scanID string, plans []model.RoleActionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[scanID]
	if !ok {
		return errors.New("report not found")
	}
	r.ActionPlans = plans
	return nil
}

func (m *memStore) SetReportWebMentions(_ context.Context, scanID string, mentions []model.WebMention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[scanID]
	if !ok {
		return errors.New("report not found")
	}
	r.WebMentions = mentions
	return nil
}

func (m *memStore) FrozenQuestions(_ context.Context, _, _ string) ([]model.FrozenQuestion, error) {
	return nil, nil
}

func (m *memStore) FrozenCompetitors(_ context.Context, orgID, entityID string) ([]model.FrozenCompetitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozenC[orgID+"/"+entityID], nil
}

func (m *memStore) FrozenRoleFamilies(_ context.Context, orgID, entityID string) ([]model.FrozenRoleFamily, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozenR[orgID+"/"+entityID], nil
}

func (m *memStore) SaveFrozenSet(_ context.Context, orgID, entityID string, _ []model.FrozenQuestion, competitors []model.FrozenCompetitor, roles []model.FrozenRoleFamily) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozenC[orgID+"/"+entityID] = competitors
	m.frozenR[orgID+"/"+entityID] = roles
	return nil
}

func (m *memStore) Unfreeze(_ context.Context, orgID, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.frozenC, orgID+"/"+entityID)
	delete(m.frozenR, orgID+"/"+entityID)
	return nil
}

func (m *memStore) InsertScoreHistory(_ context.Context, row model.ScoreHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreHistory = append(m.scoreHistory, row)
	return nil
}

func (m *memStore) InsertCompetitorHistory(_ context.Context, rows []model.CompetitorHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.competitorHistory = append(m.competitorHistory, rows...)
	return nil
}

func (m *memStore) ScoreHistory(_ context.Context, _, _ string, _ int) ([]model.ScoreHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ScoreHistory(nil), m.scoreHistory...), nil
}

func (m *memStore) InsertCostEntry(_ context.Context, entry model.CostEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costs = append(m.costs, entry)
	return nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// --- collaborator fakes ---

type fakeCrawler struct {
	content string
	err     error
	calls   int
}

func (c *fakeCrawler) Fetch(context.Context, string) (string, int, error) {
	c.calls++
	return c.content, 3, c.err
}

type fakeProfiler struct {
	lastContent string
}

func (p *fakeProfiler) Analyze(_ context.Context, entity model.Entity, content string) model.EmployerProfile {
	p.lastContent = content
	return model.EmployerProfile{Name: entity.Name, RoleFamilies: []string{"engineer"}}
}

type fakeResearch struct {
	calls     int
	questions int
}

func (r *fakeResearch) Generate(_ context.Context, entity model.Entity, _ model.EmployerProfile) model.ResearchSet {
	r.calls++
	set := model.ResearchSet{Competitors: []model.Competitor{{Name: "Rival"}}}
	for i := 0; i < r.questions; i++ {
		set.Questions = append(set.Questions, model.Prompt{
			Index:    i,
			Text:     fmt.Sprintf("What is it like to work at %s? (%d)", entity.Name, i),
			Category: model.CategoryGeneral,
		})
	}
	return set
}

type fakeFanout struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{} // when set, the first call blocks until ctx is done
	answers string
}

func (f *fakeFanout) Run(ctx context.Context, prompts []model.Prompt, _ string) (map[model.Platform][]platform.Result, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if f.block != nil && first {
		close(f.block)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	out := make(map[model.Platform][]platform.Result)
	for _, plat := range model.AllPlatforms() {
		results := make([]platform.Result, len(prompts))
		for i := range prompts {
			results[i] = platform.Result{
				Platform:       plat,
				Text:           f.answers,
				ResponseTimeMs: 120,
				Grounded:       true,
			}
		}
		out[plat] = results
	}
	return out, nil
}

type fakeResponseAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (a *fakeResponseAnalyzer) Analyze(context.Context, string, string, string) (model.ResearchScores, model.ResponseInsights, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return model.ResearchScores{Specificity: 7, Confidence: 7, TopicsCovered: []string{"culture", "compensation"}},
		model.ResponseInsights{Highlights: []string{"strong culture"}}, nil
}

type fakeSentiment struct {
	calls int
	items []analyze.SentimentItem
}

func (s *fakeSentiment) Analyze(_ context.Context, _ string, items []analyze.SentimentItem) map[string]model.SentimentAnalysis {
	s.calls++
	s.items = append(s.items, items...)
	out := make(map[string]model.SentimentAnalysis, len(items))
	for _, item := range items {
		out[item.ID] = model.SentimentAnalysis{Score: 8, Category: model.SentimentPositive}
	}
	return out
}

type fakeDiff struct {
	calls int
}

func (d *fakeDiff) Analyze(context.Context, string, []string, []string) model.DifferentiationAnalysis {
	d.calls++
	return model.DifferentiationAnalysis{CompetitorConfusion: 3, UniquePositioning: 7, GenericLanguage: 4}
}

type fixture struct {
	store     *memStore
	crawler   *fakeCrawler
	profiler  *fakeProfiler
	research  *fakeResearch
	fanout    *fakeFanout
	response  *fakeResponseAnalyzer
	sentiment *fakeSentiment
	diff      *fakeDiff
	orch      *Orchestrator
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		store:     newMemStore(),
		crawler:   &fakeCrawler{content: "## Careers\n\nWe hire engineers."},
		profiler:  &fakeProfiler{},
		research:  &fakeResearch{questions: 2},
		fanout:    &fakeFanout{answers: "Acme is a solid employer. Rival is comparable."},
		response:  &fakeResponseAnalyzer{},
		sentiment: &fakeSentiment{},
		diff:      &fakeDiff{},
	}
	f.orch = New(Deps{
		Store:           f.store,
		Crawler:         f.crawler,
		Profiler:        f.profiler,
		Research:        f.research,
		Fanout:          f.fanout,
		Response:        f.response,
		Sentiment:       f.sentiment,
		Differentiation: f.diff,
	}, cfg)
	return f
}

func testEntity() model.Entity {
	return model.Entity{OrgID: "org-1", EntityID: "ent-1", Name: "Acme", Domain: "acme.example", Location: "Austin, TX"}
}

func TestOrchestrator_FullRun(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 1, RunTimeout: time.Minute})

	run, err := f.orch.Start(context.Background(), testEntity())
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusComplete, run.Status)
	assert.Equal(t, 100, run.Progress)

	assert.Equal(t, []model.ScanStatus{
		model.ScanStatusCrawling,
		model.ScanStatusAnalyzingSite,
		model.ScanStatusResearching,
		model.ScanStatusQuerying,
		model.ScanStatusAnalyzing,
		model.ScanStatusComplete,
	}, f.store.statuses[run.ID])

	prompts, err := f.store.PromptsForScan(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.NotEmpty(t, prompts[0].ID)

	responses, err := f.store.ResponsesForScan(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2*len(model.AllPlatforms()))
	for _, r := range responses {
		assert.True(t, r.Mentioned)
		assert.Equal(t, []string{"Rival"}, r.CompetitorsMentioned)
		require.NotNil(t, r.Sentiment)
		assert.Equal(t, 8, r.Sentiment.Score)
		require.NotNil(t, r.Research)
	}

	// The sentiment batch carries each response's platform and question.
	perPlatform := map[model.Platform]int{}
	for _, item := range f.sentiment.items {
		perPlatform[item.Platform]++
		assert.Contains(t, item.Question, "What is it like to work at Acme?")
	}
	for _, plat := range model.AllPlatforms() {
		assert.Equal(t, 2, perPlatform[plat])
	}

	report, err := f.store.GetReport(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 78, report.DesirabilityScore)
	assert.Equal(t, 48, report.ResearchabilityScore)
	assert.Equal(t, 71, report.DifferentiationScore)
	assert.Equal(t, []string{"compensation", "culture"}, report.TopicsCovered)
	assert.Len(t, report.TopicsMissing, len(analyze.TopicTaxonomy)-2)
	assert.Equal(t, []string{"Rival"}, report.TopCompetitors)
	assert.NotEmpty(t, report.ShareToken)
	assert.True(t, report.ExpiresAt.After(time.Now()))

	require.Len(t, f.store.scoreHistory, 1)
	assert.Equal(t, report.DesirabilityScore, f.store.scoreHistory[0].DesirabilityScore)

	require.NotNil(t, report.CompetitorAnalysis)
	require.Len(t, report.CompetitorAnalysis.Competitors, 1)
	assert.Equal(t, "Rival", report.CompetitorAnalysis.Competitors[0].Name)
	assert.Equal(t, 8, report.CompetitorAnalysis.Competitors[0].MentionCount)
	require.Len(t, f.store.competitorHistory, 1)
}

func TestOrchestrator_ResumeSkipsFinishedWork(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 1, RunTimeout: time.Minute})
	ctx := context.Background()

	run, err := f.store.CreateScan(ctx, testEntity())
	require.NoError(t, err)

	prompts := []model.Prompt{
		{ID: "p0", ScanID: run.ID, Index: 0, Text: "q0", Category: model.CategoryGeneral},
		{ID: "p1", ScanID: run.ID, Index: 1, Text: "q1", Category: model.CategoryGeneral},
	}
	require.NoError(t, f.store.InsertPrompts(ctx, prompts))

	positive := &model.SentimentAnalysis{Score: 8, Category: model.SentimentPositive}
	research := &model.ResearchScores{Specificity: 7, Confidence: 7, TopicsCovered: []string{"culture"}}
	var responses []model.PlatformResponse
	for _, plat := range model.AllPlatforms() {
		for _, p := range prompts {
			responses = append(responses, model.PlatformResponse{
				ID:        fmt.Sprintf("r-%s-%s", plat, p.ID),
				ScanID:    run.ID,
				PromptID:  p.ID,
				Platform:  plat,
				Text:      "Acme is a solid employer.",
				Mentioned: true,
				Sentiment: positive,
				Research:  research,
			})
		}
	}
	require.NoError(t, f.store.InsertResponses(ctx, responses))

	require.NoError(t, f.orch.Resume(ctx, run.ID))

	assert.Equal(t, 0, f.crawler.calls)
	assert.Equal(t, 0, f.research.calls)
	assert.Equal(t, 0, f.fanout.calls)
	assert.Equal(t, 0, f.sentiment.calls)
	assert.Equal(t, 0, f.response.calls)

	report, err := f.store.GetReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 78, report.DesirabilityScore)

	got, err := f.store.GetScan(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusComplete, got.Status)
}

func TestOrchestrator_ResumeCompleteRunRefused(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 1, RunTimeout: time.Minute})
	ctx := context.Background()

	run, err := f.store.CreateScan(ctx, testEntity())
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateScanProgress(ctx, run.ID, model.ScanStatusComplete, 100))

	err = f.orch.Resume(ctx, run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already complete")
}

func TestOrchestrator_ExistingReportShortCircuits(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 1, RunTimeout: time.Minute})
	ctx := context.Background()

	run, err := f.store.CreateScan(ctx, testEntity())
	require.NoError(t, err)
	require.NoError(t, f.store.InsertReport(ctx, &model.Report{ID: "rep-1", ScanID: run.ID}))

	require.NoError(t, f.orch.Execute(ctx, run))

	assert.Equal(t, 0, f.crawler.calls)
	assert.Equal(t, 0, f.fanout.calls)

	got, err := f.store.GetScan(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusComplete, got.Status)
}

func TestOrchestrator_RetriesThenFails(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 3, RunTimeout: time.Minute, RetryPause: time.Millisecond})
	f.fanout.err = errors.New("all platforms down")

	run, err := f.orch.Start(context.Background(), testEntity())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all platforms down")
	assert.Equal(t, 3, f.fanout.calls)

	got, err := f.store.GetScan(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusFailed, got.Status)
	assert.Contains(t, got.Error, "all attempts exhausted")
}

func TestOrchestrator_RetryReusesAnalysis(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 2, RunTimeout: time.Minute, RetryPause: time.Millisecond})
	f.store.reportInsertFailures = 1

	run, err := f.orch.Start(context.Background(), testEntity())
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusComplete, run.Status)

	// The second attempt must replay from persisted rows, not re-run the
	// platforms or the analyzers.
	assert.Equal(t, 1, f.fanout.calls)
	assert.Equal(t, 1, f.sentiment.calls)
	assert.Equal(t, 1, f.diff.calls)
	assert.Equal(t, 2*len(model.AllPlatforms()), f.response.calls)

	report, err := f.store.GetReport(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 71, report.DifferentiationScore)
	assert.Equal(t, report.Differentiation, *f.store.diffs[run.ID])
}

func TestOrchestrator_CrawlFailureDegrades(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 1, RunTimeout: time.Minute})
	f.crawler.err = errors.New("site unreachable")

	run, err := f.orch.Start(context.Background(), testEntity())
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusComplete, run.Status)
	assert.Empty(t, f.profiler.lastContent)
}

func TestOrchestrator_NewerRunSupersedes(t *testing.T) {
	f := newFixture(Config{MaxAttempts: 1, RunTimeout: time.Minute})
	f.fanout.block = make(chan struct{})
	ctx := context.Background()

	first, err := f.store.CreateScan(ctx, testEntity())
	require.NoError(t, err)

	entered := f.fanout.block
	done := make(chan error, 1)
	go func() { done <- f.orch.Execute(ctx, first) }()
	<-entered

	second, err := f.orch.Start(ctx, testEntity())
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusComplete, second.Status)

	require.Error(t, <-done)

	got, err := f.store.GetScan(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusFailed, got.Status)
	assert.Contains(t, got.Error, "superseded")
}

func TestTopCompetitors_RanksByMentions(t *testing.T) {
	responses := []model.PlatformResponse{
		{CompetitorsMentioned: []string{"Beta", "Alpha"}},
		{CompetitorsMentioned: []string{"Beta"}},
		{CompetitorsMentioned: []string{"Gamma", "Beta"}},
		{CompetitorsMentioned: []string{"Alpha"}},
	}
	assert.Equal(t, []string{"Beta", "Alpha", "Gamma"}, topCompetitors(responses, 5))
	assert.Equal(t, []string{"Beta", "Alpha"}, topCompetitors(responses, 2))
}
