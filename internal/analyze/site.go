package analyze

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/anthropic"
)

const siteMaxTokens = 2048

// SiteAnalyzer extracts an employer profile from crawled site content. The
// profile seeds question generation, so a degraded profile still has to
// carry the entity name.
type SiteAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewSiteAnalyzer builds the site analyzer.
func NewSiteAnalyzer(client anthropic.Client, mdl string) *SiteAnalyzer {
	return &SiteAnalyzer{client: client, model: mdl}
}

const siteSystem = `You profile employers from their website content.
Respond ONLY with a JSON object:
{"name": "...", "industry": "...", "location": "...", "role_families": [...], "services": [...], "summary": "..."}
role_families: 2-5 job role groupings this employer hires for (e.g. "software engineer", "field technician").
services: main products or services offered.
summary: 3-5 sentences describing the employer, written for someone researching them as a workplace.`

// Analyze builds the employer profile from combined page markdown. On any
// failure it returns a minimal profile from the entity itself, never an
// error, so a thin or unreachable site degrades question quality instead of
// failing the scan.
func (a *SiteAnalyzer) Analyze(ctx context.Context, entity model.Entity, siteContent string) model.EmployerProfile {
	fallback := model.EmployerProfile{Name: entity.Name, Location: entity.Location}
	if strings.TrimSpace(siteContent) == "" {
		return fallback
	}

	prompt := fmt.Sprintf("Company: %s (%s)\n\nWebsite content:\n%s",
		entity.Name, entity.Domain, Truncate(siteContent, 60000))

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: siteMaxTokens,
		System:    []anthropic.SystemBlock{{Text: siteSystem}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("analyze: site profile call failed, using minimal profile",
			zap.String("entity", entity.Name),
			zap.Error(err),
		)
		return fallback
	}
	resp.Usage.LogCost(a.model, "site_analysis")

	var profile model.EmployerProfile
	if err := UnmarshalModelJSON(resp.Text(), &profile); err != nil {
		zap.L().Warn("analyze: site profile unparsable, using minimal profile", zap.Error(err))
		return fallback
	}
	if strings.TrimSpace(profile.Name) == "" {
		profile.Name = entity.Name
	}
	if profile.Location == "" {
		profile.Location = entity.Location
	}
	return profile
}
