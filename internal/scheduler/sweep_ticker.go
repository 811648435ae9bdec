package scheduler

import (
	"context"
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/automation"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
)

// SweepTicker triggers the full reconciliation pass on an interval. An
// immediate pass runs on start so contacts advanced by the passage of time
// are caught as soon as the process comes up. With a SweepScheduler the
// ticker enqueues the pass for the worker pool instead of running it
// inline.
type SweepTicker struct {
	engine   *automation.Engine
	sched    SweepScheduler
	log      *logger.Logger
	interval time.Duration
}

// NewSweepTicker creates a ticker-driven sweep runner. sched may be nil, in
// which case every tick sweeps in-process.
func NewSweepTicker(engine *automation.Engine, sched SweepScheduler, log *logger.Logger, interval time.Duration) *SweepTicker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SweepTicker{engine: engine, sched: sched, log: log, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping on every tick. Sweeps are
// idempotent, so overlapping triggers from other processes are harmless.
func (t *SweepTicker) Run(ctx context.Context) {
	t.sweep(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *SweepTicker) sweep(ctx context.Context) {
	if t.sched != nil {
		if err := t.sched.EnqueueSweep(ctx); err != nil {
			t.log.Error("failed to enqueue sequence sweep", "error", err)
		}
		return
	}

	if _, err := t.engine.Sweep(ctx); err != nil {
		t.log.Error("sequence sweep failed", "error", err)
	}
}
