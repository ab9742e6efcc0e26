// Package reaper runs Store.ReapStale on a fixed cadence for processes that
// host no worker loop of their own (the dashboard/metrics server started by
// `queuectl serve`, SPEC_FULL.md §12). Workers already reap on their own
// tick (internal/workerpool); this lets a queue stay self-healing even when
// every worker process has died, grounded on
// original_source/queuectl/database.py::reset_stale_processing_jobs.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/queuectl/queuectl/internal/metrics"
)

// Store is the subset of store.Store the reaper needs.
type Store interface {
	ReapStale(threshold time.Time) (int, error)
}

const (
	interval   = 60 * time.Second
	staleAfter = 10 * time.Minute
)

// Reaper periodically resets stale processing jobs back to pending.
type Reaper struct {
	store    Store
	clock    clockwork.Clock
	logger   *log.Logger
	observer metrics.Observer
}

func New(store Store, clock clockwork.Clock, logger *log.Logger, observer metrics.Observer) *Reaper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reaper{store: store, clock: clock, logger: logger, observer: observer}
}

// Run reaps once immediately, then every interval, until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.reapOnce()

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.reapOnce()
		}
	}
}

func (r *Reaper) reapOnce() {
	n, err := r.store.ReapStale(r.clock.Now().Add(-staleAfter))
	if err != nil {
		r.logger.Printf("reap failed: %v", err)
		return
	}
	if n > 0 {
		r.logger.Printf("reaped %d stale job(s)", n)
		if r.observer != nil {
			r.observer.RecordReaped(n)
		}
	}
}
