package automation

import (
	"context"
	"time"

	"github.com/iota-uz/foundry-sub005/internal/store"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

// LockReaper periodically reclaims per-issue automation locks that have
// outlived ttl, the supplemental backstop for a router crash or a
// dispatched execution that never reaches a terminal event (§5's TTL
// reclamation sweep).
type LockReaper struct {
	locks    store.LockStore
	ttl      time.Duration
	interval time.Duration
	logger   telemetry.Logger
}

// NewLockReaper constructs a LockReaper. A non-positive interval defaults
// to one tenth of ttl.
func NewLockReaper(locks store.LockStore, ttl, interval time.Duration, logger telemetry.Logger) *LockReaper {
	if interval <= 0 {
		interval = ttl / 10
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &LockReaper{locks: locks, ttl: ttl, interval: interval, logger: logger}
}

// Run sweeps on each tick until ctx is cancelled.
func (l *LockReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweepOnce(ctx)
		}
	}
}

func (l *LockReaper) sweepOnce(ctx context.Context) {
	n, err := l.locks.ReclaimExpired(ctx, l.ttl)
	if err != nil {
		l.logger.Warn(ctx, "automation lock reclamation sweep failed", "error", err.Error())
		return
	}
	if n > 0 {
		l.logger.Info(ctx, "reclaimed expired automation locks", "count", n)
	}
}
