package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/scan-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testStoreEntity() model.Entity {
	return model.Entity{
		OrgID:    "org-1",
		EntityID: "ent-1",
		Name:     "Acme Robotics",
		Domain:   "acme.example",
		Location: "Austin, TX",
	}
}

// --- Scans ---

func TestSQLite_Scan_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateScan(ctx, testStoreEntity())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.ScanStatusQueued, run.Status)

	require.NoError(t, st.UpdateScanProgress(ctx, run.ID, model.ScanStatusCrawling, 10))
	require.NoError(t, st.UpdateScanProgress(ctx, run.ID, model.ScanStatusQuerying, 55))

	got, err := st.GetScan(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusQuerying, got.Status)
	assert.Equal(t, 55, got.Progress)
	assert.Equal(t, "Acme Robotics", got.Entity.Name)

	require.NoError(t, st.FailScan(ctx, run.ID, "run timeout exceeded"))
	got, err = st.GetScan(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusFailed, got.Status)
	assert.Equal(t, "run timeout exceeded", got.Error)
}

func TestSQLite_Scan_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetScan(context.Background(), "nope")
	assert.Error(t, err)
	assert.Error(t, st.UpdateScanProgress(context.Background(), "nope", model.ScanStatusCrawling, 5))
}

func TestSQLite_ListScans_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateScan(ctx, testStoreEntity())
	require.NoError(t, err)
	other := testStoreEntity()
	other.EntityID = "ent-2"
	_, err = st.CreateScan(ctx, other)
	require.NoError(t, err)

	require.NoError(t, st.UpdateScanProgress(ctx, a.ID, model.ScanStatusComplete, 100))

	byStatus, err := st.ListScans(ctx, ScanFilter{Status: model.ScanStatusComplete})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, a.ID, byStatus[0].ID)

	byEntity, err := st.ListScans(ctx, ScanFilter{OrgID: "org-1", EntityID: "ent-2"})
	require.NoError(t, err)
	require.Len(t, byEntity, 1)

	all, err := st.ListScans(ctx, ScanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ScanDifferentiation_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateScan(ctx, testStoreEntity())
	require.NoError(t, err)

	// Unanalyzed scans read back as nil without error.
	got, err := st.ScanDifferentiation(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	diff := model.DifferentiationAnalysis{
		CompetitorConfusion: 3, UniquePositioning: 7, GenericLanguage: 4,
		UniqueAttributes: []string{"apprenticeships"},
	}
	require.NoError(t, st.SetScanDifferentiation(ctx, run.ID, diff))

	got, err = st.ScanDifferentiation(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, diff, *got)

	_, err = st.ScanDifferentiation(ctx, "nope")
	assert.Error(t, err)
	assert.Error(t, st.SetScanDifferentiation(ctx, "nope", diff))
}

// --- Prompts and responses ---

func TestSQLite_Prompts_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateScan(ctx, testStoreEntity())
	require.NoError(t, err)

	prompts := []model.Prompt{
		{ID: "p1", ScanID: run.ID, Index: 0, Text: "q0", Category: model.CategoryCulture},
		{ID: "p2", ScanID: run.ID, Index: 1, Text: "q1", Category: model.CategoryGeneral, RoleFamily: "engineer"},
	}
	require.NoError(t, st.InsertPrompts(ctx, prompts))

	got, err := st.PromptsForScan(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, prompts, got)

	n, err := st.CountPrompts(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_Responses_TwoPhaseWrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateScan(ctx, testStoreEntity())
	require.NoError(t, err)

	responses := []model.PlatformResponse{
		{
			ID: "r1", ScanID: run.ID, PromptID: "p1", PromptIndex: 0,
			Platform: model.PlatformChatGPT, Text: "Acme is well regarded.",
			Mentioned: true, MentionPosition: 0,
			CompetitorsMentioned: []string{"Globex"},
			Sources:              []string{"https://example.com"},
			ResponseTimeMs:       1234,
		},
		{
			ID: "r2", ScanID: run.ID, PromptID: "p1", PromptIndex: 0,
			Platform: model.PlatformClaude, MentionPosition: -1,
			Error: "all fallback tiers returned empty responses",
		},
	}
	require.NoError(t, st.InsertResponses(ctx, responses))

	n, err := st.CountResponses(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Phase one: nothing scored yet.
	scored, err := st.CountScoredResponses(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, scored)

	// Phase two: bulk sentiment patch.
	require.NoError(t, st.UpdateResponseSentiments(ctx, map[string]model.SentimentAnalysis{
		"r1": {Score: 8, Category: model.SentimentPositive, QuotesFor: []string{"well regarded"}},
		"r2": {Score: 5, Category: model.SentimentMixed},
	}))
	require.NoError(t, st.UpdateResponseResearch(ctx, "r1",
		model.ResearchScores{Specificity: 7, Confidence: 6, TopicsCovered: []string{"reputation"}},
		model.ResponseInsights{Highlights: []string{"strong reputation"}},
	))

	got, err := st.ResponsesForScan(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	var r1, r2 model.PlatformResponse
	for _, r := range got {
		switch r.ID {
		case "r1":
			r1 = r
		case "r2":
			r2 = r
		}
	}
	require.NotNil(t, r1.Sentiment)
	assert.Equal(t, 8, r1.Sentiment.Score)
	assert.Equal(t, []string{"Globex"}, r1.CompetitorsMentioned)
	require.NotNil(t, r1.Research)
	assert.Equal(t, 7, r1.Research.Specificity)
	require.NotNil(t, r1.Insights)
	assert.Equal(t, []string{"strong reputation"}, r1.Insights.Highlights)

	assert.False(t, r2.OK())
	require.NotNil(t, r2.Sentiment)
	assert.Equal(t, model.SentimentMixed, r2.Sentiment.Category)

	scored, err = st.CountScoredResponses(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, scored)
}

// --- Reports ---

func TestSQLite_Report_InsertAndAppend(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateScan(ctx, testStoreEntity())
	require.NoError(t, err)

	report := &model.Report{
		ID: "rep1", ScanID: run.ID, OrgID: "org-1", EntityID: "ent-1",
		DesirabilityScore: 75, ResearchabilityScore: 53, DifferentiationScore: 52,
		TopicsCovered:  []string{"culture", "compensation"},
		TopicsMissing:  []string{"diversity"},
		TopCompetitors: []string{"Globex"},
		PlatformScores: map[model.Platform]int{model.PlatformChatGPT: 80},
		Differentiation: model.DifferentiationAnalysis{
			CompetitorConfusion: 3, UniquePositioning: 8, GenericLanguage: 4,
		},
		ShareToken: "tok-abc",
		ExpiresAt:  time.Now().UTC().Add(30 * 24 * time.Hour),
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.InsertReport(ctx, report))

	got, err := st.GetReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, got.DesirabilityScore)
	assert.Equal(t, 53, got.ResearchabilityScore)
	assert.Equal(t, []string{"culture", "compensation"}, got.TopicsCovered)
	assert.Equal(t, 80, got.PlatformScores[model.PlatformChatGPT])
	assert.Equal(t, 8, got.Differentiation.UniquePositioning)
	assert.Nil(t, got.CompetitorAnalysis)
	assert.Empty(t, got.StrategicSummary)

	// Enrichment appends.
	require.NoError(t, st.SetReportCompetitorAnalysis(ctx, run.ID, &model.CompetitorAnalysis{
		Summary:     "Acme leads on reputation.",
		Competitors: []model.CompetitorRating{{Name: "Globex", MentionCount: 4, CompositeRank: 2}},
	}))
	require.NoError(t, st.SetReportStrategicSummary(ctx, run.ID, "Focus messaging on apprenticeships."))
	require.NoError(t, st.SetReportActionPlans(ctx, run.ID, []model.RoleActionPlan{
		{RoleFamily: "engineer", Actions: []string{"publish salary bands"}},
	}))
	require.NoError(t, st.SetReportWebMentions(ctx, run.ID, []model.WebMention{
		{URL: "https://news.example/acme", Title: "Acme expands"},
	}))

	got, err = st.GetReport(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompetitorAnalysis)
	assert.Equal(t, "Globex", got.CompetitorAnalysis.Competitors[0].Name)
	assert.Equal(t, "Focus messaging on apprenticeships.", got.StrategicSummary)
	require.Len(t, got.ActionPlans, 1)
	require.Len(t, got.WebMentions, 1)

	byToken, err := st.GetReportByShareToken(ctx, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, got.ID, byToken.ID)
}

func TestSQLite_Report_ExpiredShareToken(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateScan(ctx, testStoreEntity())
	require.NoError(t, err)

	report := &model.Report{
		ID: "rep1", ScanID: run.ID, OrgID: "org-1", EntityID: "ent-1",
		ShareToken: "tok-expired",
		ExpiresAt:  time.Now().UTC().Add(-time.Hour),
		CreatedAt:  time.Now().UTC().Add(-31 * 24 * time.Hour),
	}
	require.NoError(t, st.InsertReport(ctx, report))

	_, err = st.GetReportByShareToken(ctx, "tok-expired")
	assert.Error(t, err)
}

// --- Frozen sets ---

func TestSQLite_FrozenSet_InsertIfAbsent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	questions := []model.FrozenQuestion{
		{Index: 0, Text: "q0", Category: model.CategoryReputation},
		{Index: 1, Text: "q1", Category: model.CategoryCulture, RoleFamily: "engineer"},
	}
	competitors := []model.FrozenCompetitor{{Name: "Globex", Domain: "globex.example"}}
	roles := []model.FrozenRoleFamily{{Name: "engineer"}}

	require.NoError(t, st.SaveFrozenSet(ctx, "org-1", "ent-1", questions, competitors, roles))

	// A second freeze is a no-op, not a duplicate.
	require.NoError(t, st.SaveFrozenSet(ctx, "org-1", "ent-1",
		[]model.FrozenQuestion{{Index: 0, Text: "different"}}, nil, nil))

	gotQ, err := st.FrozenQuestions(ctx, "org-1", "ent-1")
	require.NoError(t, err)
	require.Len(t, gotQ, 2)
	assert.Equal(t, "q0", gotQ[0].Text)
	assert.Equal(t, "org-1", gotQ[0].OrgID)

	gotC, err := st.FrozenCompetitors(ctx, "org-1", "ent-1")
	require.NoError(t, err)
	require.Len(t, gotC, 1)
	assert.Equal(t, "Globex", gotC[0].Name)

	gotR, err := st.FrozenRoleFamilies(ctx, "org-1", "ent-1")
	require.NoError(t, err)
	require.Len(t, gotR, 1)
}

func TestSQLite_Unfreeze(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveFrozenSet(ctx, "org-1", "ent-1",
		[]model.FrozenQuestion{{Index: 0, Text: "q0", Category: model.CategoryGeneral}},
		[]model.FrozenCompetitor{{Name: "Globex"}},
		[]model.FrozenRoleFamily{{Name: "engineer"}},
	))
	require.NoError(t, st.Unfreeze(ctx, "org-1", "ent-1"))

	gotQ, err := st.FrozenQuestions(ctx, "org-1", "ent-1")
	require.NoError(t, err)
	assert.Empty(t, gotQ)

	// The entity can be frozen again after an unfreeze.
	require.NoError(t, st.SaveFrozenSet(ctx, "org-1", "ent-1",
		[]model.FrozenQuestion{{Index: 0, Text: "new q", Category: model.CategoryGeneral}}, nil, nil))
	gotQ, err = st.FrozenQuestions(ctx, "org-1", "ent-1")
	require.NoError(t, err)
	require.Len(t, gotQ, 1)
	assert.Equal(t, "new q", gotQ[0].Text)
}

// --- History and cost ledger ---

func TestSQLite_History_AppendOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, scanID := range []string{"scan-1", "scan-2"} {
		require.NoError(t, st.InsertScoreHistory(ctx, model.ScoreHistory{
			ID: scanID + "-h", OrgID: "org-1", EntityID: "ent-1", ScanID: scanID,
			DesirabilityScore: 70 + i, ResearchabilityScore: 50, DifferentiationScore: 52,
			RecordedAt: time.Now().UTC().Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, st.InsertCompetitorHistory(ctx, []model.CompetitorHistory{
		{ID: "ch1", OrgID: "org-1", EntityID: "ent-1", ScanID: "scan-2", Competitor: "Globex", MentionCount: 4, CompositeRank: 2, RecordedAt: time.Now().UTC()},
	}))

	history, err := st.ScoreHistory(ctx, "org-1", "ent-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first.
	assert.Equal(t, "scan-2", history[0].ScanID)
	assert.Equal(t, 71, history[0].DesirabilityScore)
}

func TestSQLite_CostEntries(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.InsertCostEntry(context.Background(), model.CostEntry{
		ID: "c1", ScanID: "scan-1", Step: "sentiment_analysis",
		Model: "claude-sonnet-4-5-20250929", InputTokens: 12000, OutputTokens: 900,
		CostUSD: 0.0495, RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}
