package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "FlashScan/pkg/logger"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

var (
	httpOnce sync.Once
	httpM    *httpMetrics
)

func sharedHTTPMetrics() *httpMetrics {
	httpOnce.Do(func() {
		httpM = &httpMetrics{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "flashscan_http_requests_total",
				Help: "HTTP requests by route template, method and status",
			}, []string{"route", "method", "status"}),
			// Analysis requests over long ranges take seconds; the buckets reach 60s.
			duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "flashscan_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 15, 30, 60},
			}, []string{"route", "method", "class"}),
			size: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "flashscan_http_response_size_bytes",
				Help:    "HTTP response size",
				Buckets: prometheus.ExponentialBuckets(256, 8, 8),
			}, []string{"route", "class"}),
			inFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "flashscan_http_in_flight_requests",
				Help: "Requests currently being served",
			}),
		}
	})
	return httpM
}

// Metrics records request metrics labelled by route template. Requests to skip paths (the
// scrape and health endpoints) are not recorded. Requests slower than slow are logged.
func Metrics(l *applogger.Logger, slow time.Duration, skip ...string) echo.MiddlewareFunc {
	m := sharedHTTPMetrics()
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		if p != "" {
			skipped[p] = true
		}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if skipped[route] {
				return next(c)
			}
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.inFlight.Inc()
			start := time.Now()
			err := next(c)
			dur := time.Since(start)
			m.inFlight.Dec()

			res := c.Response()
			class := statusClass(res.Status)
			m.requests.WithLabelValues(route, method, strconv.Itoa(res.Status)).Inc()
			m.duration.WithLabelValues(route, method, class).Observe(dur.Seconds())
			m.size.WithLabelValues(route, class).Observe(float64(res.Size))

			if slow > 0 && dur >= slow {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", res.Status),
					applogger.Duration("duration_ms", dur),
					applogger.Int64("bytes", res.Size),
				)
			}
			return err
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
