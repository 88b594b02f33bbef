package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flashscan",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of flash analysis endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalysisErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flashscan",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by flash analysis endpoint",
		},
		[]string{"endpoint"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flashscan",
			Subsystem: "api",
			Name:      "cache_total",
			Help:      "Analysis cache lookups by result",
		},
		[]string{"endpoint", "result"},
	)

	ReplayStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flashscan",
			Subsystem: "ws",
			Name:      "replay_streams",
			Help:      "Open websocket replay streams",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalysisLatency, AnalysisErrors, CacheHits, ReplayStreams)
	})
}
