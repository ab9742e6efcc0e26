// Package workerpool runs N concurrent worker loops against a shared
// Dispatcher and Store. Each loop's per-tick order (heartbeat, periodic
// reap, promote-due, claim, execute, finalize) follows
// original_source/queuectl/worker.py::Worker.run; each loop selects on a
// ticker and on the context that cmd/worker.go derives from
// signal.NotifyContext, and the pool stops its loops with a bounded grace
// period.
package workerpool

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/queuectl/queuectl/internal/dispatcher"
	"github.com/queuectl/queuectl/internal/engine"
	"github.com/queuectl/queuectl/internal/executor"
	"github.com/queuectl/queuectl/internal/metrics"
	"github.com/queuectl/queuectl/internal/retry"
)

// Backend is the subset of Store a worker needs beyond what the dispatcher
// already wraps.
type Backend interface {
	RegisterWorker(id string, pid int, now time.Time) error
	HeartbeatWorker(id string, now time.Time) error
	StopWorker(id string, now time.Time) error
	ReapStale(threshold time.Time) (int, error)
	GetConfig() (engine.Config, error)
	FinalizeSuccess(id string, now time.Time, stdout, stderr string, durationMS int64) error
	FinalizeFailure(id string, now time.Time, nextState engine.State, nextRetryAt time.Time, errMsg, stdout, stderr string, durationMS int64) error
}

const (
	reapInterval   = 60 * time.Second
	reapStaleAfter = 10 * time.Minute
)

// Worker runs one dispatch loop until its context is cancelled.
type Worker struct {
	ID         string
	store      Backend
	dispatcher *dispatcher.Dispatcher
	clock      clockwork.Clock
	logger     *log.Logger
	observer   metrics.Observer
}

// New builds a worker with a generated id of the form pid-index-shortuuid,
// mirroring the original worker's f"{pid}-{index}-{uuid4[:8]}" scheme. A nil
// observer is fine; metrics are then simply not recorded.
func New(index int, store Backend, disp *dispatcher.Dispatcher, clock clockwork.Clock, observer metrics.Observer) *Worker {
	id := fmt.Sprintf("%d-%d-%s", os.Getpid(), index, uuid.New().String()[:8])
	return &Worker{
		ID:         id,
		store:      store,
		dispatcher: disp,
		clock:      clock,
		logger:     log.New(os.Stdout, fmt.Sprintf("[worker %s] ", id), log.LstdFlags),
		observer:   observer,
	}
}

// Run registers the worker, reaps stale jobs once at startup, then loops
// claim/execute/finalize at the configured poll interval until ctx is
// cancelled, at which point it deregisters and returns.
func (w *Worker) Run(ctx context.Context) {
	now := w.clock.Now()
	if err := w.store.RegisterWorker(w.ID, os.Getpid(), now); err != nil {
		w.logger.Printf("register failed: %v", err)
	}

	if _, err := w.store.ReapStale(now.Add(-reapStaleAfter)); err != nil {
		w.logger.Printf("startup reap failed: %v", err)
	}

	cfg, err := w.store.GetConfig()
	if err != nil {
		w.logger.Printf("read config failed, using defaults: %v", err)
		cfg = engine.DefaultConfig()
	}

	lastReap := w.clock.Now()
	pollInterval := time.Duration(cfg.WorkerPollInterval * float64(time.Second))
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	backoffBase := cfg.BackoffBase
	ticker := w.clock.NewTicker(pollInterval)
	defer ticker.Stop()

	w.logger.Printf("started")
	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case <-ticker.Chan():
			w.tick(&lastReap, backoffBase)
		}
	}
}

func (w *Worker) shutdown() {
	now := w.clock.Now()
	if err := w.store.StopWorker(w.ID, now); err != nil {
		w.logger.Printf("deregister failed: %v", err)
	}
	w.logger.Printf("stopped")
}

// tick runs one dispatch cycle. Job execution deliberately uses a context
// independent of the pool's shutdown signal: a shutdown MUST let the
// currently claimed job finish (SPEC_FULL.md §4.6's cooperative stop), so
// only the job's own timeout can cut it short, not the pool's cancel.
// backoffBase is the value captured once at Run's start; SPEC_FULL.md §9
// requires an operator restart to pick up a changed backoff-base, the same
// guarantee pollInterval already gets.
func (w *Worker) tick(lastReap *time.Time, backoffBase int) {
	now := w.clock.Now()

	if err := w.store.HeartbeatWorker(w.ID, now); err != nil {
		w.logger.Printf("heartbeat failed: %v", err)
	}

	if now.Sub(*lastReap) >= reapInterval {
		if n, err := w.store.ReapStale(now.Add(-reapStaleAfter)); err != nil {
			w.logger.Printf("reap failed: %v", err)
		} else if n > 0 {
			w.logger.Printf("reaped %d stale job(s)", n)
			if w.observer != nil {
				w.observer.RecordReaped(n)
			}
		}
		*lastReap = now
	}

	job, err := w.dispatcher.Next(now)
	if err != nil {
		w.logger.Printf("dispatch error: %v", err)
		return
	}
	if job == nil {
		return
	}

	w.logger.Printf("claimed job %s", job.ID)
	if w.observer != nil {
		w.observer.RecordClaimed()
	}
	res := executor.Run(context.Background(), job.Command, job.EffectiveTimeout())
	finishedAt := w.clock.Now()
	execDuration := time.Duration(res.DurationMS) * time.Millisecond

	// A failed finalize is tried up to 3 times; if it still fails the job
	// stays processing and is left for the reaper.
	finalize := func(op func() error) error {
		var err error
		for i := 0; i < 3; i++ {
			if err = op(); err == nil {
				return nil
			}
		}
		return err
	}

	if res.Outcome == retry.OutcomeSuccess {
		if err := finalize(func() error {
			return w.store.FinalizeSuccess(job.ID, finishedAt, res.Stdout, res.Stderr, res.DurationMS)
		}); err != nil {
			w.logger.Printf("finalize success failed for %s: %v", job.ID, err)
		}
		w.logger.Printf("job %s completed", job.ID)
		if w.observer != nil {
			w.observer.RecordCompleted(execDuration)
		}
		return
	}

	decision := retry.Decide(retry.OutcomeRetryableFailure, job.Attempts, job.MaxRetries, backoffBase, finishedAt)
	if err := finalize(func() error {
		return w.store.FinalizeFailure(job.ID, finishedAt, decision.State, decision.NextRetryAt, res.ErrMessage, res.Stdout, res.Stderr, res.DurationMS)
	}); err != nil {
		w.logger.Printf("finalize failure failed for %s: %v", job.ID, err)
	}
	if decision.State == engine.StateDead {
		w.logger.Printf("job %s exhausted retries, moved to dead letter queue", job.ID)
		if w.observer != nil {
			w.observer.RecordDead()
		}
	} else {
		w.logger.Printf("job %s failed, will retry at %s", job.ID, decision.NextRetryAt.Format(time.RFC3339))
		if w.observer != nil {
			w.observer.RecordFailed()
		}
	}
}
