package platform

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandlens/scan-cli/internal/model"
)

// Fanout runs every configured platform concurrently over the full prompt
// list. Each platform walks the prompts in fixed-size batches so a slow
// provider never holds more than batchSize calls in flight.
type Fanout struct {
	queriers  []Querier
	batchSize int
}

// NewFanout builds a fan-out over the given queriers. batchSize caps
// concurrent prompts per platform; values below 1 are treated as 1.
func NewFanout(queriers []Querier, batchSize int) *Fanout {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Fanout{queriers: queriers, batchSize: batchSize}
}

// Run queries every platform with every prompt and returns results keyed by
// platform, each slice aligned with the prompt order. Individual failures
// surface as error Results; Run itself only fails on context cancellation.
func (f *Fanout) Run(ctx context.Context, prompts []model.Prompt, location string) (map[model.Platform][]Result, error) {
	out := make(map[model.Platform][]Result, len(f.queriers))
	for _, q := range f.queriers {
		out[q.Platform()] = make([]Result, len(prompts))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range f.queriers {
		g.Go(func() error {
			return f.runPlatform(gctx, q, prompts, location, out[q.Platform()])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// runPlatform walks the prompt list in batches, writing each Result into the
// slot matching its prompt index.
func (f *Fanout) runPlatform(ctx context.Context, q Querier, prompts []model.Prompt, location string, results []Result) error {
	start := time.Now()
	for lo := 0; lo < len(prompts); lo += f.batchSize {
		hi := lo + f.batchSize
		if hi > len(prompts) {
			hi = len(prompts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = q.Query(gctx, QueryRequest{
					Prompt:   prompts[i].Text,
					Location: location,
				})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	zap.L().Info("platform: batch complete",
		zap.String("platform", string(q.Platform())),
		zap.Int("prompts", len(prompts)),
		zap.Int("succeeded", ok),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
