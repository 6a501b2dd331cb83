package goReset

import (
	"context"
	"time"

	internalflows "github.com/MrEthical07/goReset/internal/flows"
)

// SweepExpired runs one expiry sweep pass and returns how many tokens were
// removed. Only tokens that expired more than Reset.SweepGrace ago are
// eligible. Failures are logged and returned; they never affect Issue or
// Verify.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return e.flows.Sweep(ctx)
}

// RunSweeper calls SweepExpired every Reset.SweepInterval until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context) {
	if !e.ready() {
		return
	}
	ticker := time.NewTicker(e.config.Reset.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// failures are already logged by the sweep
			_, _ = e.SweepExpired(ctx)
		}
	}
}

func (e *Engine) sweepFlowDeps() internalflows.SweepDeps {
	return internalflows.SweepDeps{
		Grace:        e.config.Reset.SweepGrace,
		BatchSize:    e.config.Reset.SweepBatchSize,
		Now:          e.now,
		SweepExpired: e.store.SweepExpired,
		Logf:         logf,
		MetricInc:    e.metricInc,
		MetricAdd:    e.metricAdd,
		Metrics: internalflows.SweepMetrics{
			Run:     int(MetricSweepRun),
			Removed: int(MetricSweepRemoved),
			Failure: int(MetricSweepFailure),
		},
	}
}
