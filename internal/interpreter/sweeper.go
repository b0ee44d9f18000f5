package interpreter

import (
	"context"
	"time"
)

// RunningLister gives Sweeper the set of execution ids currently recorded as
// running, so it doesn't need to scan a whole persisted table. Satisfied by
// internal/store's MemoryExecutions (and any real backing store's
// equivalent "status = running" index).
type RunningLister interface {
	ListRunningIDs(ctx context.Context) ([]string, error)
}

// Sweeper periodically calls SweepStale against every running execution,
// the crash-recovery backstop named but not assigned an owner in §4.4: if a
// process dies mid-execution, nothing ever advances lastActivityAt again, so
// this is what eventually moves the orphaned row to failed(StaleExecution).
type Sweeper struct {
	interp   *Interpreter
	lister   RunningLister
	interval time.Duration
}

// NewSweeper constructs a Sweeper. A non-positive interval defaults to one
// tenth of the interpreter's staleness threshold (DefaultStaleThreshold).
func NewSweeper(interp *Interpreter, lister RunningLister, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = interp.staleThreshold / 10
	}
	return &Sweeper{interp: interp, lister: lister, interval: interval}
}

// Run sweeps on each tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	ids, err := s.lister.ListRunningIDs(ctx)
	if err != nil {
		s.interp.logger.Warn(ctx, "staleness sweep: failed to list running executions", "error", err.Error())
		return
	}
	for _, id := range ids {
		if _, err := s.interp.SweepStale(ctx, id); err != nil {
			s.interp.logger.Warn(ctx, "staleness sweep: failed to sweep execution", "executionId", id, "error", err.Error())
		}
	}
}
