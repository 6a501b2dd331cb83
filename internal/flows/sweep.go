package flows

import (
	"context"
	"time"
)

type SweepMetrics struct {
	Run     int
	Removed int
	Failure int
}

type SweepDeps struct {
	Grace      time.Duration
	BatchSize  int
	MaxBatches int

	Now          func() time.Time
	SweepExpired func(context.Context, time.Time, int) (int, error)
	Logf         func(string, ...any)
	MetricInc    func(int)
	MetricAdd    func(int, uint64)

	Metrics SweepMetrics
}

// RunSweep removes tokens that expired more than Grace ago, batch by batch,
// until a short batch comes back or MaxBatches is reached. Failures are
// logged and returned with the count removed so far.
func RunSweep(ctx context.Context, deps SweepDeps) (int, error) {
	normalizeSweepDeps(&deps)
	if deps.SweepExpired == nil {
		return 0, nil
	}

	deps.MetricInc(deps.Metrics.Run)
	cutoff := deps.Now().Add(-deps.Grace)

	total := 0
	for batch := 0; batch < deps.MaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := deps.SweepExpired(ctx, cutoff, deps.BatchSize)
		if n > 0 {
			total += n
			deps.MetricAdd(deps.Metrics.Removed, uint64(n))
		}
		if err != nil {
			deps.MetricInc(deps.Metrics.Failure)
			deps.Logf("goReset: expired token sweep failed after removing %d: %v", total, err)
			return total, err
		}
		if n < deps.BatchSize {
			break
		}
	}

	return total, nil
}

func normalizeSweepDeps(deps *SweepDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = 500
	}
	if deps.MaxBatches <= 0 {
		deps.MaxBatches = 100
	}
	if deps.Grace < 0 {
		deps.Grace = 0
	}
	if deps.Logf == nil {
		deps.Logf = func(string, ...any) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = func(int, uint64) {}
	}
}
