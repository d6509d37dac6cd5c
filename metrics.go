package jobpool

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "jobpool"

type metrics struct {
	submitted  prometheus.Counter
	completed  prometheus.Counter
	panicked   prometheus.Counter
	dropped    prometheus.Counter
	queueDepth prometheus.Gauge
	busy       prometheus.Gauge
	duration   prometheus.Histogram
}

func newMetrics(poolName string) *metrics {
	labels := prometheus.Labels{"pool": poolName}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &metrics{
		submitted:  counter("jobs_submitted_total", "Jobs accepted by Submit."),
		completed:  counter("jobs_completed_total", "Jobs that ran to completion, including those that panicked."),
		panicked:   counter("jobs_panicked_total", "Jobs that panicked."),
		dropped:    counter("jobs_dropped_total", "Jobs discarded by shutdown without running."),
		queueDepth: gauge("queue_depth", "Jobs waiting to be claimed."),
		busy:       gauge("workers_busy", "Workers currently running a job."),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "job_duration_seconds",
			Help:        "Job run time.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.submitted, m.completed, m.panicked, m.dropped,
		m.queueDepth, m.busy, m.duration,
	}
}

// register adds every collector to r. On failure the ones already added are
// removed again so a retry with another name starts clean.
func (m *metrics) register(r prometheus.Registerer) error {
	var registered []prometheus.Collector
	for _, c := range m.collectors() {
		if err := r.Register(c); err != nil {
			for _, done := range registered {
				r.Unregister(done)
			}
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return fmt.Errorf("%w: %w", ErrMetricsRegistered, err)
			}
			return fmt.Errorf("worker pool metrics registration failed: %w", err)
		}
		registered = append(registered, c)
	}
	return nil
}
