// Package export renders a completed scan as an XLSX deck: one summary
// sheet plus per-platform, per-response, competitor and trend detail sheets.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/internal/platform"
)

// Data bundles everything a workbook needs.
type Data struct {
	Run       *model.ScanRun
	Report    *model.Report
	Prompts   []model.Prompt
	Responses []model.PlatformResponse
	History   []model.ScoreHistory
}

// BuildWorkbook renders the scan into an in-memory workbook.
func BuildWorkbook(data Data) (*xlsx.File, error) {
	if data.Run == nil || data.Report == nil {
		return nil, eris.New("export: run and report are required")
	}

	file := xlsx.NewFile()
	if err := addSummarySheet(file, data); err != nil {
		return nil, err
	}
	if err := addPlatformSheet(file, data); err != nil {
		return nil, err
	}
	if err := addResponseSheet(file, data); err != nil {
		return nil, err
	}
	if err := addCompetitorSheet(file, data); err != nil {
		return nil, err
	}
	if err := addTrendSheet(file, data); err != nil {
		return nil, err
	}
	return file, nil
}

// Write renders the workbook and streams it to w.
func Write(w io.Writer, data Data) error {
	file, err := BuildWorkbook(data)
	if err != nil {
		return err
	}
	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// WriteFile renders the workbook to a path.
func WriteFile(path string, data Data) error {
	file, err := BuildWorkbook(data)
	if err != nil {
		return err
	}
	if err := file.Save(path); err != nil {
		return eris.Wrap(err, fmt.Sprintf("export: save workbook %s", path))
	}
	return nil
}

func addSummarySheet(file *xlsx.File, data Data) error {
	sheet, err := file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	kv := func(key, value string) {
		row := sheet.AddRow()
		row.AddCell().Value = key
		row.AddCell().Value = value
	}

	kv("Employer", data.Run.Entity.Name)
	kv("Domain", data.Run.Entity.Domain)
	kv("Market", data.Run.Entity.Location)
	kv("Scan", data.Run.ID)
	kv("Completed", data.Report.CreatedAt.Format("2006-01-02 15:04 MST"))
	sheet.AddRow()
	kv("Desirability", fmt.Sprintf("%d / 100", data.Report.DesirabilityScore))
	kv("Researchability", fmt.Sprintf("%d / 100", data.Report.ResearchabilityScore))
	kv("Differentiation", fmt.Sprintf("%d / 100", data.Report.DifferentiationScore))
	sheet.AddRow()
	kv("Topics covered", strings.Join(data.Report.TopicsCovered, ", "))
	kv("Topics missing", strings.Join(data.Report.TopicsMissing, ", "))
	kv("Top competitors", strings.Join(data.Report.TopCompetitors, ", "))

	if data.Report.StrategicSummary != "" {
		sheet.AddRow()
		kv("Strategic summary", data.Report.StrategicSummary)
	}
	for _, plan := range data.Report.ActionPlans {
		kv("Actions: "+plan.RoleFamily, strings.Join(plan.Actions, "; "))
	}
	return nil
}

func addPlatformSheet(file *xlsx.File, data Data) error {
	sheet, err := file.AddSheet("Platforms")
	if err != nil {
		return eris.Wrap(err, "export: add platform sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Platform", "Weight", "Score", "Responses", "Mentions", "Mention rate"} {
		header.AddCell().Value = h
	}

	for _, plat := range model.AllPlatforms() {
		total, mentions := 0, 0
		for _, r := range data.Responses {
			if r.Platform != plat {
				continue
			}
			total++
			if r.Mentioned {
				mentions++
			}
		}
		rate := 0.0
		if total > 0 {
			rate = float64(mentions) / float64(total)
		}

		row := sheet.AddRow()
		row.AddCell().Value = string(plat)
		row.AddCell().SetInt(platform.Weights[plat])
		row.AddCell().SetInt(data.Report.PlatformScores[plat])
		row.AddCell().SetInt(total)
		row.AddCell().SetInt(mentions)
		row.AddCell().SetFloatWithFormat(rate, "0.0%")
	}
	return nil
}

func addResponseSheet(file *xlsx.File, data Data) error {
	sheet, err := file.AddSheet("Responses")
	if err != nil {
		return eris.Wrap(err, "export: add response sheet")
	}

	questions := make(map[string]string, len(data.Prompts))
	for _, p := range data.Prompts {
		questions[p.ID] = p.Text
	}

	header := sheet.AddRow()
	for _, h := range []string{"Question", "Platform", "Mentioned", "Sentiment", "Category", "Specificity", "Confidence", "Error"} {
		header.AddCell().Value = h
	}

	responses := append([]model.PlatformResponse(nil), data.Responses...)
	sort.Slice(responses, func(i, j int) bool {
		if responses[i].PromptIndex != responses[j].PromptIndex {
			return responses[i].PromptIndex < responses[j].PromptIndex
		}
		return responses[i].Platform < responses[j].Platform
	})

	for _, r := range responses {
		row := sheet.AddRow()
		row.AddCell().Value = questions[r.PromptID]
		row.AddCell().Value = string(r.Platform)
		row.AddCell().SetBool(r.Mentioned)
		if r.Sentiment != nil {
			row.AddCell().SetInt(r.Sentiment.Score)
			row.AddCell().Value = string(r.Sentiment.Category)
		} else {
			row.AddCell()
			row.AddCell()
		}
		if r.Research != nil {
			row.AddCell().SetInt(r.Research.Specificity)
			row.AddCell().SetInt(r.Research.Confidence)
		} else {
			row.AddCell()
			row.AddCell()
		}
		row.AddCell().Value = r.Error
	}
	return nil
}

func addCompetitorSheet(file *xlsx.File, data Data) error {
	sheet, err := file.AddSheet("Competitors")
	if err != nil {
		return eris.Wrap(err, "export: add competitor sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Competitor", "Mentions", "Rank", "Strengths"} {
		header.AddCell().Value = h
	}

	if data.Report.CompetitorAnalysis == nil {
		return nil
	}
	for _, c := range data.Report.CompetitorAnalysis.Competitors {
		row := sheet.AddRow()
		row.AddCell().Value = c.Name
		row.AddCell().SetInt(c.MentionCount)
		row.AddCell().SetInt(c.CompositeRank)
		row.AddCell().Value = c.Strengths
	}
	return nil
}

func addTrendSheet(file *xlsx.File, data Data) error {
	sheet, err := file.AddSheet("Trend")
	if err != nil {
		return eris.Wrap(err, "export: add trend sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Date", "Desirability", "Researchability", "Differentiation"} {
		header.AddCell().Value = h
	}

	history := append([]model.ScoreHistory(nil), data.History...)
	sort.Slice(history, func(i, j int) bool { return history[i].RecordedAt.Before(history[j].RecordedAt) })

	for _, h := range history {
		row := sheet.AddRow()
		row.AddCell().Value = h.RecordedAt.Format("2006-01-02")
		row.AddCell().SetInt(h.DesirabilityScore)
		row.AddCell().SetInt(h.ResearchabilityScore)
		row.AddCell().SetInt(h.DifferentiationScore)
	}
	return nil
}
