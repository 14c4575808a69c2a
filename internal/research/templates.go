package research

import (
	_ "embed"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/brandlens/scan-cli/internal/model"
)

//go:embed questions.yaml
var questionsYAML []byte

// templateFile mirrors questions.yaml: core questions asked for every
// entity, comparison questions repeated per competitor, and role questions
// repeated per detected role family.
type templateFile struct {
	Core       []templateQuestion `yaml:"core"`
	Comparison []templateQuestion `yaml:"comparison"`
	Role       []templateQuestion `yaml:"role"`
}

type templateQuestion struct {
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
}

var (
	templatesOnce sync.Once
	templates     templateFile
)

func loadTemplates() templateFile {
	templatesOnce.Do(func() {
		if err := yaml.Unmarshal(questionsYAML, &templates); err != nil {
			zap.L().Error("research: embedded question templates unparsable", zap.Error(err))
			templates = templateFile{
				Core: []templateQuestion{
					{Text: "What is it like to work at {entity}?", Category: "culture"},
					{Text: "What is {entity} known for as an employer?", Category: "reputation"},
				},
			}
		}
	})
	return templates
}

// TemplateSet builds the fixed fallback question set for an entity. It is
// the path of last resort when fresh generation fails outright, so it never
// returns an error.
func TemplateSet(profile model.EmployerProfile, competitors []model.Competitor) model.ResearchSet {
	tmpl := loadTemplates()

	var questions []model.Prompt
	add := func(q templateQuestion, repl *strings.Replacer, roleFamily string) {
		questions = append(questions, model.Prompt{
			Index:      len(questions),
			Text:       repl.Replace(q.Text),
			Category:   templateCategory(q.Category),
			RoleFamily: roleFamily,
		})
	}

	base := strings.NewReplacer("{entity}", profile.Name, "{location}", profile.Location)
	for _, q := range tmpl.Core {
		add(q, base, "")
	}
	for _, c := range competitors {
		repl := strings.NewReplacer("{entity}", profile.Name, "{competitor}", c.Name)
		for _, q := range tmpl.Comparison {
			add(q, repl, "")
		}
	}
	for _, role := range profile.RoleFamilies {
		repl := strings.NewReplacer("{entity}", profile.Name, "{role}", role)
		for _, q := range tmpl.Role {
			add(q, repl, role)
		}
	}

	return model.ResearchSet{Questions: questions, Competitors: competitors}
}

// RoleSupplement builds only the role-tagged questions, used to additively
// extend a legacy frozen set that predates role tagging. startIndex keeps
// prompt indexes contiguous after the legacy questions.
func RoleSupplement(entityName string, roleFamilies []string, startIndex int) []model.Prompt {
	tmpl := loadTemplates()

	var questions []model.Prompt
	for _, role := range roleFamilies {
		repl := strings.NewReplacer("{entity}", entityName, "{role}", role)
		for _, q := range tmpl.Role {
			questions = append(questions, model.Prompt{
				Index:      startIndex + len(questions),
				Text:       repl.Replace(q.Text),
				Category:   templateCategory(q.Category),
				RoleFamily: role,
			})
		}
	}
	return questions
}

func templateCategory(s string) model.QuestionCategory {
	switch model.QuestionCategory(s) {
	case model.CategoryReputation, model.CategoryCulture, model.CategoryCompensation, model.CategoryComparison:
		return model.QuestionCategory(s)
	default:
		return model.CategoryGeneral
	}
}
