// Package metrics records engine runs on Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flashscan"

// Recorder implements the domain Metrics interface.
type Recorder struct {
	runs       *prometheus.CounterVec
	bars       *prometheus.CounterVec
	flashes    *prometheus.CounterVec
	activeLast *prometheus.GaugeVec
	issues     *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New registers on the default registry; call it once per process.
func New() *Recorder { return NewWithRegistry(prometheus.DefaultRegisterer) }

func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	counter := func(sub, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help}, labels)
	}
	return &Recorder{
		runs:    counter("engine", "runs_total", "Completed engine runs", "symbol"),
		bars:    counter("engine", "bars_total", "Bars consumed by the engine", "symbol"),
		flashes: counter("engine", "flashes_total", "Flashes by state at the end of a run", "symbol", "state"),
		issues:  counter("engine", "degenerate_outcomes_total", "Closed flashes whose outcome could not be computed", "symbol"),
		errors:  counter("", "errors_total", "Errors by kind", "kind"),
		activeLast: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "engine", Name: "active_flashes",
			Help: "Active flashes left at the end of the symbol's last run",
		}, []string{"symbol"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "operation_duration_seconds",
			Help:    "Duration of load, engine and persist steps",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordRun(symbol string, bars, active, closed, stunted int, seconds float64) {
	r.runs.WithLabelValues(symbol).Inc()
	r.bars.WithLabelValues(symbol).Add(float64(bars))
	r.flashes.WithLabelValues(symbol, "closed").Add(float64(closed))
	r.flashes.WithLabelValues(symbol, "stunted").Add(float64(stunted))
	r.activeLast.WithLabelValues(symbol).Set(float64(active))
	r.latency.WithLabelValues("engine_run").Observe(seconds)
}

// RecordIssues ignores n <= 0 so a clean run creates no series.
func (r *Recorder) RecordIssues(symbol string, n int) {
	if n > 0 {
		r.issues.WithLabelValues(symbol).Add(float64(n))
	}
}

func (r *Recorder) RecordError(kind string) { r.errors.WithLabelValues(kind).Inc() }

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
