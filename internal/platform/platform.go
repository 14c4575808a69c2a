// Package platform abstracts the AI chat platforms queried by a scan. Each
// vendor adapter converges on the same Result shape so the fan-out and the
// scorer never see vendor specifics.
package platform

import (
	"context"
	"strings"

	"github.com/brandlens/scan-cli/internal/model"
)

// Weights are fixed per-platform market-share weights used by the
// desirability score. The total is 17.
var Weights = map[model.Platform]int{
	model.PlatformChatGPT:    10,
	model.PlatformClaude:     1,
	model.PlatformGemini:     2,
	model.PlatformPerplexity: 4,
}

// TotalWeight is the sum of all platform weights.
const TotalWeight = 17

// QueryRequest is one question posed to one platform.
type QueryRequest struct {
	Prompt   string
	Location string // optional market context, e.g. "Austin, TX"
}

// Result is a platform's answer. It is always a value: a platform that
// exhausts every fallback tier reports Err, it never raises, so one
// platform's outage cannot block the others.
type Result struct {
	Platform       model.Platform
	Text           string
	Sources        []string
	ResponseTimeMs int64
	Grounded       bool // false when only the ungrounded tier succeeded
	Err            string
}

// OK reports whether the result carries usable text.
func (r Result) OK() bool {
	return r.Err == "" && r.Text != ""
}

// Caller is the low-level per-vendor call. grounded selects the vendor's
// search-grounded calling convention where one exists; adapters without
// native grounding ignore the flag.
type Caller interface {
	Name() model.Platform
	Generate(ctx context.Context, prompt string, grounded bool) (text string, sources []string, err error)
}

// DetectMention finds the first occurrence of the entity name in text,
// case-insensitively. Returns (-1, false) when absent.
func DetectMention(text, entity string) (int, bool) {
	if entity == "" || text == "" {
		return -1, false
	}
	idx := strings.Index(strings.ToLower(text), strings.ToLower(entity))
	if idx < 0 {
		return -1, false
	}
	return idx, true
}

// DetectCompetitors returns the subset of competitor names mentioned in
// text, preserving input order.
func DetectCompetitors(text string, competitors []string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for _, c := range competitors {
		if c == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(c)) {
			found = append(found, c)
		}
	}
	return found
}
