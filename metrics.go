package pomps

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeExecuted = "executed"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
)

// Metrics exports stage and record counters to Prometheus. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	records       *prometheus.CounterVec
}

// NewMetrics registers the pomps collectors with reg. Passing
// prometheus.DefaultRegisterer exposes them through promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		stageRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pomps_stage_runs_total",
				Help: "Checkpointed stage runs by outcome (executed, skipped, failed).",
			},
			[]string{"stage", "outcome"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pomps_stage_duration_seconds",
				Help:    "Wall time of executed stages.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5.5min
			},
			[]string{"stage"},
		),
		records: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pomps_records_total",
				Help: "Records written per stage.",
			},
			[]string{"stage"},
		),
	}
}

func (m *Metrics) stageRun(stage Stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.WithLabelValues(string(stage), outcome).Inc()
	if outcome != outcomeSkipped {
		m.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) recordsWritten(stage Stage, n int) {
	if m == nil || n == 0 {
		return
	}
	m.records.WithLabelValues(string(stage)).Add(float64(n))
}
