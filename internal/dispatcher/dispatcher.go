// Package dispatcher is the thin policy layer between a worker and the
// Store: it decides which job a worker gets next. Today that's
// Store.PromoteDue followed by Store.ClaimNext, but keeping it as its own package (rather
// than calling the store directly from the worker loop) leaves room to add
// per-worker dispatch policy later without touching storage.
package dispatcher

import (
	"time"

	"github.com/queuectl/queuectl/internal/engine"
)

// ClaimSource is the subset of Store a Dispatcher needs.
type ClaimSource interface {
	ClaimNext(now time.Time) (*engine.Job, error)
	PromoteDue(now time.Time) (int, error)
}

type Dispatcher struct {
	source ClaimSource
}

func New(source ClaimSource) *Dispatcher {
	return &Dispatcher{source: source}
}

// Next promotes any due failed jobs, then attempts to claim one pending
// job. Returns (nil, nil) when the queue has nothing eligible right now.
func (d *Dispatcher) Next(now time.Time) (*engine.Job, error) {
	if _, err := d.source.PromoteDue(now); err != nil {
		return nil, err
	}
	return d.source.ClaimNext(now)
}
