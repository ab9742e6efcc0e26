package workerpool

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/queuectl/queuectl/internal/dispatcher"
	"github.com/queuectl/queuectl/internal/metrics"
)

// shutdownGrace bounds how long Pool.Stop waits for in-flight jobs to
// finish before returning, mirroring the 30s thread.join(timeout=30) in
// original_source/queuectl/worker.py::WorkerManager.stop.
const shutdownGrace = 30 * time.Second

// Pool runs a fixed number of Worker loops and manages their lifecycle.
type Pool struct {
	workers []*Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *log.Logger
}

// NewPool builds count workers sharing one dispatcher/store and a real
// clock, unless overridden (tests inject a clockwork.FakeClock instead).
func NewPool(count int, store Backend, disp *dispatcher.Dispatcher, clock clockwork.Clock, logger *log.Logger, observer metrics.Observer) *Pool {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	p := &Pool{logger: logger}
	for i := 0; i < count; i++ {
		p.workers = append(p.workers, New(i+1, store, disp, clock, observer))
	}
	return p
}

// Start launches every worker's loop in its own goroutine. It returns
// immediately; call Stop (or cancel the parent context) to shut down.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Printf("starting %d worker(s)", len(p.workers))
	for _, w := range p.workers {
		w := w
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
}

// Stop signals every worker to shut down and waits up to shutdownGrace for
// them to finish their current tick and deregister.
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Printf("all workers stopped")
	case <-time.After(shutdownGrace):
		p.logger.Printf("shutdown grace period elapsed, some workers may still be finishing")
	}
}
