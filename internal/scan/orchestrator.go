// Package scan orchestrates the visibility pipeline: crawl the entity's
// site, profile it, generate or thaw the research set, fan questions out to
// every platform, analyze the answers, score, and publish a report. Progress
// is persisted before each step so an interrupted run can be resumed, and
// every step checks what already exists before doing work, so a retry never
// duplicates rows or re-spends model calls.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/analyze"
	"github.com/brandlens/scan-cli/internal/cost"
	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/internal/platform"
	"github.com/brandlens/scan-cli/internal/store"
	"github.com/brandlens/scan-cli/pkg/anthropic"
	"github.com/brandlens/scan-cli/pkg/jina"
)

// Progress checkpoints persisted as each step begins.
const (
	progressCrawling      = 10
	progressAnalyzingSite = 20
	progressResearching   = 30
	progressQuerying      = 45
	progressAnalyzing     = 70
	progressComplete      = 100
)

const defaultRetryPause = 2 * time.Second

// Profiler turns crawled site content into an employer profile.
type Profiler interface {
	Analyze(ctx context.Context, entity model.Entity, siteContent string) model.EmployerProfile
}

// ResearchGenerator produces the question set and competitor list for a run.
type ResearchGenerator interface {
	Generate(ctx context.Context, entity model.Entity, profile model.EmployerProfile) model.ResearchSet
}

// QueryRunner fans prompts out across every platform.
type QueryRunner interface {
	Run(ctx context.Context, prompts []model.Prompt, location string) (map[model.Platform][]platform.Result, error)
}

// ResponseAnalyzer scores one response's research dimensions and extracts
// its insights.
type ResponseAnalyzer interface {
	Analyze(ctx context.Context, entity, question, response string) (model.ResearchScores, model.ResponseInsights, error)
}

// SentimentRater rates a batch of responses.
type SentimentRater interface {
	Analyze(ctx context.Context, entity string, items []analyze.SentimentItem) map[string]model.SentimentAnalysis
}

// DifferentiationRater judges how distinctly the responses describe the
// entity versus its competitors.
type DifferentiationRater interface {
	Analyze(ctx context.Context, entity string, competitors []string, responses []string) model.DifferentiationAnalysis
}

// Config holds the orchestrator's runtime knobs.
type Config struct {
	MaxAttempts int
	RunTimeout  time.Duration
	ReportTTL   time.Duration
	RetryPause  time.Duration
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Store           store.Store
	Crawler         Crawler
	Profiler        Profiler
	Research        ResearchGenerator
	Fanout          QueryRunner
	Response        ResponseAnalyzer
	Sentiment       SentimentRater
	Differentiation DifferentiationRater
	Search          jina.Client
	LLM             anthropic.Client
	Model           string
	Tracker         *cost.Tracker
}

type runHandle struct {
	runID  string
	cancel context.CancelFunc
}

// Orchestrator drives scans through the pipeline. One orchestrator serves
// all entities; at most one run per (org, entity) is in flight, and starting
// a newer run cancels the older one. Last writer wins.
type Orchestrator struct {
	deps Deps
	cfg  Config

	mu      sync.Mutex
	running map[string]*runHandle
}

// New builds an orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 12 * time.Minute
	}
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = 30 * 24 * time.Hour
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = defaultRetryPause
	}
	return &Orchestrator{deps: deps, cfg: cfg, running: make(map[string]*runHandle)}
}

// Start creates a run for the entity and executes it to completion.
func (o *Orchestrator) Start(ctx context.Context, entity model.Entity) (*model.ScanRun, error) {
	run, err := o.deps.Store.CreateScan(ctx, entity)
	if err != nil {
		return nil, eris.Wrap(err, "scan: create run")
	}
	if err := o.Execute(ctx, run); err != nil {
		return run, err
	}
	return o.deps.Store.GetScan(ctx, run.ID)
}

// Launch creates a run and executes it in the background, returning the
// queued run immediately. The execution context is detached from the
// caller's so an HTTP request ending does not kill the scan.
func (o *Orchestrator) Launch(ctx context.Context, entity model.Entity) (*model.ScanRun, error) {
	run, err := o.deps.Store.CreateScan(ctx, entity)
	if err != nil {
		return nil, eris.Wrap(err, "scan: create run")
	}
	go func() {
		if err := o.Execute(context.WithoutCancel(ctx), run); err != nil {
			zap.L().Error("scan: background run failed",
				zap.String("scan_id", run.ID),
				zap.Error(err),
			)
		}
	}()
	return run, nil
}

// Resume picks up an interrupted run. Completed work is detected from the
// persisted rows, so steps that already ran are skipped.
func (o *Orchestrator) Resume(ctx context.Context, runID string) error {
	run, err := o.deps.Store.GetScan(ctx, runID)
	if err != nil {
		return eris.Wrap(err, "scan: load run for resume")
	}
	if run.Status == model.ScanStatusComplete {
		return eris.Errorf("scan: run %s already complete", runID)
	}
	return o.Execute(ctx, run)
}

// Execute drives one run through the pipeline, retrying whole-pipeline
// failures up to MaxAttempts within the run deadline. On exhaustion the run
// is marked failed with the final error.
func (o *Orchestrator) Execute(ctx context.Context, run *model.ScanRun) error {
	key := entityKey(run.Entity)
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()
	o.register(key, run.ID, cancel)
	defer o.unregister(key, run.ID)

	var err error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		err = o.pipeline(runCtx, run)
		if err == nil {
			return nil
		}
		if runCtx.Err() != nil {
			break
		}
		zap.L().Warn("scan: attempt failed",
			zap.String("scan_id", run.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < o.cfg.MaxAttempts {
			select {
			case <-runCtx.Done():
			case <-time.After(o.cfg.RetryPause):
			}
		}
	}

	o.fail(run.ID, failureMessage(runCtx, err))
	return err
}

// Cancel aborts the in-flight run for an entity, if any.
func (o *Orchestrator) Cancel(orgID, entityID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.running[orgID+"/"+entityID]
	if !ok {
		return false
	}
	h.cancel()
	delete(o.running, orgID+"/"+entityID)
	return true
}

func entityKey(e model.Entity) string {
	return e.OrgID + "/" + e.EntityID
}

func (o *Orchestrator) register(key, runID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.running[key]; ok {
		zap.L().Info("scan: superseding in-flight run",
			zap.String("previous", prev.runID),
			zap.String("scan_id", runID),
		)
		prev.cancel()
	}
	o.running[key] = &runHandle{runID: runID, cancel: cancel}
}

func (o *Orchestrator) unregister(key, runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if h, ok := o.running[key]; ok && h.runID == runID {
		delete(o.running, key)
	}
}

// fail records the terminal failure with a fresh context: the run's own
// context is usually already dead at this point.
func (o *Orchestrator) fail(runID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.deps.Store.FailScan(ctx, runID, message); err != nil {
		zap.L().Error("scan: record failure",
			zap.String("scan_id", runID),
			zap.Error(err),
		)
	}
}

func failureMessage(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "run exceeded its deadline"
	case errors.Is(ctx.Err(), context.Canceled):
		return "superseded by a newer scan for this entity"
	case err != nil:
		return fmt.Sprintf("all attempts exhausted: %v", err)
	default:
		return "all attempts exhausted"
	}
}
