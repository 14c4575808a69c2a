// Package cost computes and records API spend per scan.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
	Gemini     map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
	Jina       JinaRate             `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl  FirecrawlRate        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaRate holds Jina Search pricing.
type JinaRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// PerplexityRate holds Perplexity pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// FirecrawlRate holds Firecrawl pricing.
type FirecrawlRate struct {
	PerPage float64 `yaml:"per_page" mapstructure:"per_page"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

func tokenCost(rate ModelRate, input, output, cacheWrite, cacheRead int) float64 {
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + cwCost + crCost
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return tokenCost(rate, input, output, cacheWrite, cacheRead)
}

// OpenAI computes the cost for a ChatGPT API call.
func (c *Calculator) OpenAI(model string, input, output int) float64 {
	rate, ok := c.rates.OpenAI[model]
	if !ok {
		return 0
	}
	return tokenCost(rate, input, output, 0, 0)
}

// Gemini computes the cost for a Gemini API call.
func (c *Calculator) Gemini(model string, input, output int) float64 {
	rate, ok := c.rates.Gemini[model]
	if !ok {
		return 0
	}
	return tokenCost(rate, input, output, 0, 0)
}

// PerplexityQuery returns the flat cost per Perplexity query.
func (c *Calculator) PerplexityQuery() float64 {
	return c.rates.Perplexity.PerQuery
}

// JinaQuery returns the flat cost per Jina search.
func (c *Calculator) JinaQuery() float64 {
	return c.rates.Jina.PerQuery
}

// FirecrawlPages computes the crawl cost for the given page count.
func (c *Calculator) FirecrawlPages(pages int) float64 {
	return float64(pages) * c.rates.Firecrawl.PerPage
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o":      {Input: 2.50, Output: 10.00},
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
		},
		Gemini: map[string]ModelRate{
			"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
		},
		Jina:       JinaRate{PerQuery: 0.01},
		Perplexity: PerplexityRate{PerQuery: 0.005},
		Firecrawl:  FirecrawlRate{PerPage: 0.006},
	}
}
