// Package operational exposes the service's own metrics and health checks.
package operational

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gasguard"

// Upload outcomes recorded by Metrics.Upload.
const (
	OutcomeScored    = "scored"
	OutcomeNoFile    = "no_file"
	OutcomeNoNumeric = "no_numeric"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// Metrics groups the counters updated by scoring runs. A nil *Metrics is a no-op.
type Metrics struct {
	uploads         *prometheus.CounterVec
	rowsScored      prometheus.Counter
	anomalies       prometheus.Counter
	scoringDuration prometheus.Histogram
}

// NewMetrics registers the scoring metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Counter of uploaded tables by outcome",
		}, []string{"outcome"}),
		rowsScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scored_total",
			Help:      "Counter of readings labelled by the model",
		}),
		anomalies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Counter of readings labelled as anomalies",
		}),
		scoringDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Time spent preparing, scaling and scoring one upload",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// Upload counts one upload with the given outcome.
func (m *Metrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// ObserveRun records a completed scoring run.
func (m *Metrics) ObserveRun(rows, anomalies int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rowsScored.Add(float64(rows))
	m.anomalies.Add(float64(anomalies))
	m.scoringDuration.Observe(elapsed.Seconds())
}
