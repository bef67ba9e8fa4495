// Package metrics exposes Prometheus instrumentation for the job pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms for job orchestration.
type Metrics struct {
	JobsSubmitted *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	AlertsCreated prometheus.Counter
}

// New registers and returns the job metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terralens_jobs_submitted_total",
			Help: "Total analysis jobs admitted, by kind.",
		}, []string{"kind"}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terralens_jobs_completed_total",
			Help: "Total analysis jobs completed successfully, by kind.",
		}, []string{"kind"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terralens_jobs_failed_total",
			Help: "Total analysis jobs that ended in failure, by kind.",
		}, []string{"kind"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "terralens_job_duration_seconds",
			Help:    "Wall-clock duration from admission to terminal state, by kind.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind"}),
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terralens_alerts_created_total",
			Help: "Total alerts emitted from completed job detections.",
		}),
	}

	reg.MustRegister(m.JobsSubmitted, m.JobsCompleted, m.JobsFailed, m.JobDuration, m.AlertsCreated)
	return m
}
