// Package metrics exports queue telemetry to Prometheus, following the
// Observer/PrometheusObserver/nopObserver shape of
// cklxx-elephant.ai/internal/materials/storage/metrics.go (CounterVec +
// HistogramVec, AlreadyRegisteredError handling, nil-receiver-safe
// methods), generalized to the five counters and one histogram named in
// SPEC_FULL.md §12.2.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for queue operations. A nil
// *PrometheusObserver is valid and records nothing; a nil Observer
// interface value is not, so callers holding an Observer nil-check it.
type Observer interface {
	RecordClaimed()
	RecordCompleted(duration time.Duration)
	RecordFailed()
	RecordDead()
	RecordReaped(n int)
}

// PrometheusObserver is the Observer backed by client_golang collectors.
type PrometheusObserver struct {
	claimed     prometheus.Counter
	completed   prometheus.Counter
	failed      prometheus.Counter
	dead        prometheus.Counter
	reaped      prometheus.Counter
	jobDuration prometheus.Histogram
}

// NewPrometheusObserver registers the queuectl_* metrics against reg,
// defaulting to prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_claimed_total",
			Help: "Jobs claimed for execution by a worker.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_completed_total",
			Help: "Jobs that finished with exit code 0.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_failed_total",
			Help: "Job attempts that failed but remain eligible for retry.",
		}),
		dead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_dead_total",
			Help: "Jobs that exhausted their retries and entered the dead letter queue.",
		}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_reaped_jobs_total",
			Help: "Processing jobs reset to pending after exceeding the staleness threshold.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "queuectl_job_duration_seconds",
			Help:    "Wall-clock duration of a single job execution attempt.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{o.claimed, o.completed, o.failed, o.dead, o.reaped, o.jobDuration}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register queue metric: %w", err)
		}
	}
	return o, nil
}

func (o *PrometheusObserver) RecordClaimed() {
	if o == nil {
		return
	}
	o.claimed.Inc()
}

func (o *PrometheusObserver) RecordCompleted(duration time.Duration) {
	if o == nil {
		return
	}
	o.completed.Inc()
	o.jobDuration.Observe(duration.Seconds())
}

func (o *PrometheusObserver) RecordFailed() {
	if o == nil {
		return
	}
	o.failed.Inc()
}

func (o *PrometheusObserver) RecordDead() {
	if o == nil {
		return
	}
	o.dead.Inc()
}

func (o *PrometheusObserver) RecordReaped(n int) {
	if o == nil || n <= 0 {
		return
	}
	o.reaped.Add(float64(n))
}
