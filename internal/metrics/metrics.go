// Package metrics exports job lifecycle events as Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jobkit/internal/jobs"
)

// Listener counts job events and observes execution durations.
type Listener struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  prometheus.GaugeFunc

	mu      sync.Mutex
	started map[uuid.UUID]time.Time
	clock   func() time.Time
}

// New registers the job metrics in reg. The running gauge is computed from
// the futures tracked by m at scrape time.
func New(reg prometheus.Registerer, m *jobs.Manager) *Listener {
	factory := promauto.With(reg)
	return &Listener{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobkit_job_events_total",
				Help: "Total number of job lifecycle events",
			},
			[]string{"type", "mode"},
		),
		// Buckets: 5ms to ~82s
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobkit_job_duration_seconds",
				Help:    "Time from job start until it is done or cancelled",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 15),
			},
			[]string{"mode"},
		),
		running: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "jobkit_jobs_running",
				Help: "Current number of jobs being executed",
			},
			func() float64 { return float64(countRunning(m)) },
		),
		started: make(map[uuid.UUID]time.Time),
		clock:   time.Now,
	}
}

// JobChanged implements jobs.Listener.
func (l *Listener) JobChanged(e jobs.JobChangeEvent) {
	if e.Future != nil {
		l.track(e)
	}
	l.events.WithLabelValues(e.Type.String(), e.Mode.String()).Inc()
}

func (l *Listener) track(e jobs.JobChangeEvent) {
	id := e.Future.ID()
	l.mu.Lock()
	defer l.mu.Unlock()
	switch e.Type {
	case jobs.EventAboutToRun:
		l.started[id] = l.clock()
	case jobs.EventDone:
		if start, ok := l.started[id]; ok {
			delete(l.started, id)
			l.duration.WithLabelValues(e.Mode.String()).Observe(l.clock().Sub(start).Seconds())
		}
	}
}

func countRunning(m *jobs.Manager) int {
	if m == nil {
		return 0
	}
	n := 0
	m.Visit(func(h jobs.Handle) bool {
		if h.State() == jobs.StateRunning {
			n++
		}
		return true
	})
	return n
}

var _ jobs.Listener = (*Listener)(nil)
