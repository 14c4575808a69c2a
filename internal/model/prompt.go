package model

// QuestionCategory tags the intent of a research question.
type QuestionCategory string

const (
	CategoryReputation   QuestionCategory = "reputation"
	CategoryCulture      QuestionCategory = "culture"
	CategoryCompensation QuestionCategory = "compensation"
	CategoryComparison   QuestionCategory = "comparison"
	CategoryGeneral      QuestionCategory = "general"
)

// Prompt is a natural-language question asked of every platform within one
// scan. Created once per run (or copied from the frozen set); immutable
// thereafter.
type Prompt struct {
	ID         string           `json:"id"`
	ScanID     string           `json:"scan_id"`
	Index      int              `json:"index"`
	Text       string           `json:"text"`
	Category   QuestionCategory `json:"category"`
	RoleFamily string           `json:"role_family,omitempty"`
}

// FrozenQuestion is an org+entity-scoped question locked after the first
// successful scan so that longitudinal comparisons stay apples-to-apples.
type FrozenQuestion struct {
	OrgID      string           `json:"org_id"`
	EntityID   string           `json:"entity_id"`
	Index      int              `json:"index"`
	Text       string           `json:"text"`
	Category   QuestionCategory `json:"category"`
	RoleFamily string           `json:"role_family,omitempty"`
}

// FrozenCompetitor is a competitor locked alongside the frozen question set.
type FrozenCompetitor struct {
	OrgID    string `json:"org_id"`
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Domain   string `json:"domain,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// FrozenRoleFamily is a role family locked for an entity.
type FrozenRoleFamily struct {
	OrgID    string `json:"org_id"`
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
}

// Competitor is a competitor surfaced by research for the current run.
type Competitor struct {
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ResearchSet is the output of the research step: the questions to ask and
// the competitors to watch for.
type ResearchSet struct {
	Questions   []Prompt     `json:"questions"`
	Competitors []Competitor `json:"competitors"`
	FromFrozen  bool         `json:"from_frozen"`
}
