package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brandlens/scan-cli/internal/analyze"
	"github.com/brandlens/scan-cli/internal/cost"
	"github.com/brandlens/scan-cli/internal/platform"
	"github.com/brandlens/scan-cli/internal/research"
	"github.com/brandlens/scan-cli/internal/scan"
	"github.com/brandlens/scan-cli/internal/store"
	anthropicpkg "github.com/brandlens/scan-cli/pkg/anthropic"
	"github.com/brandlens/scan-cli/pkg/firecrawl"
	"github.com/brandlens/scan-cli/pkg/jina"
	"github.com/brandlens/scan-cli/pkg/perplexity"
)

// scanEnv holds the initialized store and orchestrator shared by the scan,
// serve and runs commands.
type scanEnv struct {
	Store        store.Store
	Orchestrator *scan.Orchestrator
}

// Close releases resources held by the environment.
func (e *scanEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "scan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initScanEnv sets up the store, all platform clients, the analyzers, and
// the orchestrator. Callers should defer env.Close().
func initScanEnv(ctx context.Context) (*scanEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))

	var jinaOpts []jina.Option
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
	)

	geminiCaller, err := platform.NewGeminiCaller(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init gemini")
	}

	rps := cfg.Scan.PlatformRPS
	queriers := []platform.Querier{
		platform.NewTieredQuerier(platform.NewOpenAICaller(cfg.OpenAI.Key, cfg.OpenAI.Model), jinaClient, rps),
		platform.NewTieredQuerier(platform.NewClaudeCaller(anthropicClient, cfg.Anthropic.Model), jinaClient, rps),
		platform.NewTieredQuerier(geminiCaller, jinaClient, rps),
		platform.NewTieredQuerier(platform.NewPerplexityCaller(perplexityClient, cfg.Perplexity.Model), jinaClient, rps),
	}

	tracker := cost.NewTracker(st, cost.NewCalculator(cost.DefaultRates()))

	orch := scan.New(scan.Deps{
		Store:           st,
		Crawler:         scan.NewSiteCrawler(firecrawlClient, cfg.Firecrawl.MaxPages, cfg.Firecrawl.MaxDepth),
		Profiler:        analyze.NewSiteAnalyzer(anthropicClient, cfg.Anthropic.Model),
		Research:        research.NewGenerator(st, anthropicClient, cfg.Anthropic.Model),
		Fanout:          platform.NewFanout(queriers, cfg.Scan.QuestionBatchSize),
		Response:        analyze.NewResearchAnalyzer(anthropicClient, cfg.Anthropic.HaikuModel),
		Sentiment:       analyze.NewSentimentAnalyzer(anthropicClient, cfg.Anthropic.Model),
		Differentiation: analyze.NewDifferentiationAnalyzer(anthropicClient, cfg.Anthropic.Model),
		Search:          jinaClient,
		LLM:             anthropicClient,
		Model:           cfg.Anthropic.Model,
		Tracker:         tracker,
	}, scan.Config{
		MaxAttempts: cfg.Scan.MaxAttempts,
		RunTimeout:  cfg.Scan.RunTimeout,
		ReportTTL:   cfg.Scan.ReportTTL,
	})

	return &scanEnv{Store: st, Orchestrator: orch}, nil
}
