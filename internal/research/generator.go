// Package research derives the question set and competitor list for a scan,
// either by reusing the entity's frozen set or by generating a fresh one.
package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/analyze"
	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

const generateMaxTokens = 4096

var errEmptyGeneration = eris.New("research: model produced no questions")

// FrozenStore is the slice of the persistence layer the generator needs:
// reading an entity's frozen set and freezing a fresh one.
type FrozenStore interface {
	FrozenQuestions(ctx context.Context, orgID, entityID string) ([]model.FrozenQuestion, error)
	FrozenCompetitors(ctx context.Context, orgID, entityID string) ([]model.FrozenCompetitor, error)
	FrozenRoleFamilies(ctx context.Context, orgID, entityID string) ([]model.FrozenRoleFamily, error)
	SaveFrozenSet(ctx context.Context, orgID, entityID string, questions []model.FrozenQuestion, competitors []model.FrozenCompetitor, roles []model.FrozenRoleFamily) error
}

// Generator produces the research set for a scan. Generate never returns an
// error: LLM failure degrades to the template set, and freeze failures are
// logged and swallowed.
type Generator struct {
	store  FrozenStore
	client anthropic.Client
	model  string
}

// NewGenerator builds a research generator.
func NewGenerator(store FrozenStore, client anthropic.Client, mdl string) *Generator {
	return &Generator{store: store, client: client, model: mdl}
}

// Generate returns the question and competitor set for the entity. A frozen
// set, when present, is returned verbatim so repeated scans stay comparable;
// legacy frozen sets with no role tags are extended additively with
// role-tagged questions, never rewritten.
func (g *Generator) Generate(ctx context.Context, entity model.Entity, profile model.EmployerProfile) model.ResearchSet {
	if set, ok := g.fromFrozen(ctx, entity, profile); ok {
		return set
	}

	set, err := g.fresh(ctx, profile)
	if err != nil {
		zap.L().Warn("research: fresh generation failed, using template set",
			zap.String("entity", profile.Name),
			zap.Error(err),
		)
		set = TemplateSet(profile, nil)
	}

	g.freeze(ctx, entity, profile, set)
	return set
}

// fromFrozen loads the entity's frozen set. Returns ok=false when no frozen
// questions exist or the store read fails.
func (g *Generator) fromFrozen(ctx context.Context, entity model.Entity, profile model.EmployerProfile) (model.ResearchSet, bool) {
	frozen, err := g.store.FrozenQuestions(ctx, entity.OrgID, entity.EntityID)
	if err != nil {
		zap.L().Warn("research: frozen question lookup failed", zap.Error(err))
		return model.ResearchSet{}, false
	}
	if len(frozen) == 0 {
		return model.ResearchSet{}, false
	}

	set := model.ResearchSet{FromFrozen: true}
	tagged := false
	for _, q := range frozen {
		if q.RoleFamily != "" {
			tagged = true
		}
		set.Questions = append(set.Questions, model.Prompt{
			Index:      q.Index,
			Text:       q.Text,
			Category:   q.Category,
			RoleFamily: q.RoleFamily,
		})
	}

	// A frozen set that predates role tagging gets supplemental role
	// questions appended after the legacy ones. The frozen rows are never
	// touched, so the legacy set stays byte-identical scan to scan.
	if !tagged && len(profile.RoleFamilies) > 0 {
		supplement := RoleSupplement(profile.Name, profile.RoleFamilies, len(set.Questions))
		set.Questions = append(set.Questions, supplement...)
		zap.L().Info("research: extended legacy frozen set with role questions",
			zap.String("entity", profile.Name),
			zap.Int("supplemental", len(supplement)),
		)
	}

	competitors, err := g.store.FrozenCompetitors(ctx, entity.OrgID, entity.EntityID)
	if err != nil {
		zap.L().Warn("research: frozen competitor lookup failed", zap.Error(err))
	}
	for _, c := range competitors {
		set.Competitors = append(set.Competitors, model.Competitor{Name: c.Name, Domain: c.Domain, Reason: c.Reason})
	}
	return set, true
}

type generatedResearch struct {
	Questions []struct {
		Text       string `json:"text"`
		Category   string `json:"category"`
		RoleFamily string `json:"role_family"`
	} `json:"questions"`
	Competitors []struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
		Reason string `json:"reason"`
	} `json:"competitors"`
}

const researchSystem = `You research employers and design questions that reveal how AI assistants portray them.
Respond ONLY with a JSON object:
{"questions": [{"text": "...", "category": "reputation|culture|compensation|comparison|general", "role_family": ""}], "competitors": [{"name": "...", "domain": "...", "reason": "..."}]}
Produce 8-12 questions a job seeker would plausibly ask an AI assistant about this employer, plus one comparison question per competitor.
For each role family listed, add 1-2 questions tagged with that role_family. Leave role_family empty otherwise.
List 3-5 real direct competitors for talent.`

// fresh asks the model for an entity-specific question set.
func (g *Generator) fresh(ctx context.Context, profile model.EmployerProfile) (model.ResearchSet, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Employer: %s\nIndustry: %s\nLocation: %s\n", profile.Name, profile.Industry, profile.Location)
	if len(profile.RoleFamilies) > 0 {
		fmt.Fprintf(&b, "Role families: %s\n", strings.Join(profile.RoleFamilies, ", "))
	}
	if len(profile.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(profile.Services, ", "))
	}
	if profile.Summary != "" {
		fmt.Fprintf(&b, "\nSite summary:\n%s\n", profile.Summary)
	}

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: generateMaxTokens,
		System:    []anthropic.SystemBlock{{Text: researchSystem}},
		Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return model.ResearchSet{}, err
	}
	resp.Usage.LogCost(g.model, "research_generation")

	var out generatedResearch
	if err := analyze.UnmarshalModelJSON(resp.Text(), &out); err != nil {
		return model.ResearchSet{}, err
	}
	if len(out.Questions) == 0 {
		return model.ResearchSet{}, errEmptyGeneration
	}

	var set model.ResearchSet
	for i, q := range out.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		set.Questions = append(set.Questions, model.Prompt{
			Index:      i,
			Text:       text,
			Category:   templateCategory(q.Category),
			RoleFamily: strings.TrimSpace(q.RoleFamily),
		})
	}
	for _, c := range out.Competitors {
		if name := strings.TrimSpace(c.Name); name != "" {
			set.Competitors = append(set.Competitors, model.Competitor{Name: name, Domain: c.Domain, Reason: c.Reason})
		}
	}
	return set, nil
}

// freeze persists the set as the entity's frozen set. Best effort: a failed
// or already-done freeze never fails the run, and the store skips the write
// when frozen rows already exist so a retried step cannot double-freeze.
func (g *Generator) freeze(ctx context.Context, entity model.Entity, profile model.EmployerProfile, set model.ResearchSet) {
	questions := make([]model.FrozenQuestion, 0, len(set.Questions))
	for _, q := range set.Questions {
		questions = append(questions, model.FrozenQuestion{
			OrgID:      entity.OrgID,
			EntityID:   entity.EntityID,
			Index:      q.Index,
			Text:       q.Text,
			Category:   q.Category,
			RoleFamily: q.RoleFamily,
		})
	}
	competitors := make([]model.FrozenCompetitor, 0, len(set.Competitors))
	for _, c := range set.Competitors {
		competitors = append(competitors, model.FrozenCompetitor{
			OrgID:    entity.OrgID,
			EntityID: entity.EntityID,
			Name:     c.Name,
			Domain:   c.Domain,
			Reason:   c.Reason,
		})
	}
	roles := make([]model.FrozenRoleFamily, 0, len(profile.RoleFamilies))
	for _, r := range profile.RoleFamilies {
		roles = append(roles, model.FrozenRoleFamily{OrgID: entity.OrgID, EntityID: entity.EntityID, Name: r})
	}

	if err := g.store.SaveFrozenSet(ctx, entity.OrgID, entity.EntityID, questions, competitors, roles); err != nil {
		zap.L().Warn("research: freeze failed, next scan will regenerate",
			zap.String("entity", profile.Name),
			zap.Error(err),
		)
	}
}
