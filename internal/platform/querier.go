package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/pkg/jina"
)

// minResponseChars is the shortest answer accepted as adequate. Anything
// shorter is treated like an empty response and retried.
const minResponseChars = 100

// Querier issues one question to one platform through the full fallback
// chain. Query never returns an error: exhausted chains produce a Result
// with Err set.
type Querier interface {
	Platform() model.Platform
	Query(ctx context.Context, req QueryRequest) Result
}

// TieredQuerier wraps a vendor Caller with the retry/fallback ladder:
//
//  1. grounded call, retried once on an empty or too-short answer
//  2. web-search fallback: build a context block from search results and
//     re-ask the same model with that context
//  3. ungrounded call
//  4. explicit error Result
type TieredQuerier struct {
	caller  Caller
	search  jina.Client
	limiter *rate.Limiter
}

// NewTieredQuerier builds a Querier around a vendor caller. search may be
// nil, which skips the search-grounding tier. rps bounds outbound calls per
// second for this platform; zero disables limiting.
func NewTieredQuerier(caller Caller, search jina.Client, rps float64) *TieredQuerier {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &TieredQuerier{caller: caller, search: search, limiter: limiter}
}

func (q *TieredQuerier) Platform() model.Platform { return q.caller.Name() }

func (q *TieredQuerier) Query(ctx context.Context, req QueryRequest) Result {
	start := time.Now()
	result := Result{Platform: q.caller.Name()}

	prompt := req.Prompt
	if req.Location != "" {
		prompt = fmt.Sprintf("%s\n\nAnswer for the %s market.", req.Prompt, req.Location)
	}

	// Tier 1: grounded call with one retry on inadequate output.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		text, sources, err := q.generate(ctx, prompt, true)
		if err == nil && adequate(text) {
			result.Text = text
			result.Sources = sources
			result.Grounded = true
			result.ResponseTimeMs = time.Since(start).Milliseconds()
			return result
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			result.Err = ctx.Err().Error()
			result.ResponseTimeMs = time.Since(start).Milliseconds()
			return result
		}
	}

	// Tier 2: re-ask with a web-search context block.
	if q.search != nil {
		if contextBlock := q.searchContext(ctx, req.Prompt); contextBlock != "" {
			grounded := fmt.Sprintf("Using the following web search results as context:\n\n%s\n\n%s", contextBlock, prompt)
			text, _, err := q.generate(ctx, grounded, false)
			if err == nil && adequate(text) {
				result.Text = text
				result.Grounded = true
				result.ResponseTimeMs = time.Since(start).Milliseconds()
				return result
			}
			if err != nil {
				lastErr = err
			}
		}
	}

	// Tier 3: plain ungrounded call.
	text, _, err := q.generate(ctx, prompt, false)
	if err == nil && strings.TrimSpace(text) != "" {
		result.Text = text
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		return result
	}
	if err != nil {
		lastErr = err
	}

	if lastErr != nil {
		result.Err = lastErr.Error()
	} else {
		result.Err = "all fallback tiers returned empty responses"
	}
	result.ResponseTimeMs = time.Since(start).Milliseconds()

	zap.L().Warn("platform: query exhausted all tiers",
		zap.String("platform", string(q.caller.Name())),
		zap.String("error", result.Err),
	)
	return result
}

func (q *TieredQuerier) generate(ctx context.Context, prompt string, grounded bool) (string, []string, error) {
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return "", nil, err
		}
	}
	return q.caller.Generate(ctx, prompt, grounded)
}

// searchContext builds a numbered context block from web search results.
// Failures return "" so the caller simply skips this tier.
func (q *TieredQuerier) searchContext(ctx context.Context, query string) string {
	resp, err := q.search.Search(ctx, query)
	if err != nil {
		zap.L().Debug("platform: search fallback failed",
			zap.String("platform", string(q.caller.Name())),
			zap.Error(err),
		)
		return ""
	}

	var b strings.Builder
	for i, r := range resp.Data {
		if i >= 5 {
			break
		}
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n\n", i+1, r.Title, r.URL, snippet)
	}
	return strings.TrimSpace(b.String())
}

func adequate(text string) bool {
	return len(strings.TrimSpace(text)) >= minResponseChars
}
