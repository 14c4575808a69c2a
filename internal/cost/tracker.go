package cost

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/model"
)

// EntryStore persists cost ledger rows.
type EntryStore interface {
	InsertCostEntry(ctx context.Context, entry model.CostEntry) error
}

// Tracker records spend per scan into the cost ledger. Writes are fire and
// forget: a failed insert is logged, never surfaced, so cost accounting can
// never fail a scan.
type Tracker struct {
	store EntryStore
	calc  *Calculator
}

// NewTracker creates a cost tracker backed by the given store.
func NewTracker(store EntryStore, calc *Calculator) *Tracker {
	return &Tracker{store: store, calc: calc}
}

// Calculator exposes the underlying rate calculator.
func (t *Tracker) Calculator() *Calculator {
	return t.calc
}

// Record writes one ledger row.
func (t *Tracker) Record(ctx context.Context, scanID, step, mdl string, inputTokens, outputTokens int, costUSD float64) {
	entry := model.CostEntry{
		ID:           uuid.NewString(),
		ScanID:       scanID,
		Step:         step,
		Model:        mdl,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      costUSD,
		RecordedAt:   time.Now().UTC(),
	}
	if err := t.store.InsertCostEntry(ctx, entry); err != nil {
		zap.L().Warn("cost: ledger insert failed",
			zap.String("scan_id", scanID),
			zap.String("step", step),
			zap.Float64("cost_usd", costUSD),
			zap.Error(err),
		)
	}
}

// RecordFlat writes a per-query flat cost row with no token counts.
func (t *Tracker) RecordFlat(ctx context.Context, scanID, step, service string, queries int, perQuery float64) {
	t.Record(ctx, scanID, step, service, 0, 0, float64(queries)*perQuery)
}
