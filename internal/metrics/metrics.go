// Package metrics exposes Prometheus collectors for the intelligence service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	probesTotal                *prometheus.CounterVec
	extractionsTotal           *prometheus.CounterVec
	analysesTotal              *prometheus.CounterVec
	cacheRequestsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		probesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intel_url_probes_total",
				Help: "Total candidate URL probes, labeled by method and result.",
			},
			[]string{"method", "result"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intel_extractions_total",
				Help: "Total page extraction attempts, labeled by mode and status.",
			},
			[]string{"mode", "status"},
		)

		analysesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intel_company_analyses_total",
				Help: "Total company analyses, labeled by outcome.",
			},
			[]string{"status"},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intel_cache_requests_total",
				Help: "Total cache lookups, labeled by namespace and result.",
			},
			[]string{"namespace", "result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveProbe records one candidate URL probe outcome.
func ObserveProbe(method, result string) {
	if probesTotal == nil {
		return
	}
	probesTotal.WithLabelValues(method, result).Inc()
}

// ObserveExtraction records one extraction attempt outcome.
func ObserveExtraction(mode, status string) {
	if extractionsTotal == nil {
		return
	}
	extractionsTotal.WithLabelValues(mode, status).Inc()
}

// ObserveAnalysis records a finished company analysis.
func ObserveAnalysis(status string) {
	if analysesTotal == nil {
		return
	}
	analysesTotal.WithLabelValues(status).Inc()
}

// ObserveCache records a cache lookup as a hit or miss.
func ObserveCache(namespace string, hit bool) {
	if cacheRequestsTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(namespace, result).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
