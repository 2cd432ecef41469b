package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline activity
type Metrics struct {
	runs        *prometheus.CounterVec
	stepLatency *prometheus.HistogramVec
	signingWait prometheus.Histogram
	inflight    prometheus.Gauge
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mp",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished action runs segmented by action and outcome.",
		}, []string{"action", "outcome"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mp",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Time spent in each pipeline state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		signingWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mp",
			Subsystem: "pipeline",
			Name:      "signing_wait_seconds",
			Help:      "Time between the signing request and the signer's answer or timeout.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mp",
			Subsystem: "pipeline",
			Name:      "inflight_runs",
			Help:      "Runs currently holding an account lock.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.stepLatency, m.signingWait, m.inflight)
	}
	return m
}

func (m *Metrics) observeRun(action, outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) observeStep(state State, d time.Duration) {
	if m == nil || state == StateIdle {
		return
	}
	m.stepLatency.WithLabelValues(string(state)).Observe(d.Seconds())
}

func (m *Metrics) observeSigning(d time.Duration) {
	if m == nil {
		return
	}
	m.signingWait.Observe(d.Seconds())
}

func (m *Metrics) trackInflight(delta float64) {
	if m == nil {
		return
	}
	m.inflight.Add(delta)
}
