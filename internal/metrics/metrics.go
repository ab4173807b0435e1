// Package metrics exposes Prometheus collectors for the ETL service.
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
	etlPagesFetchedTotal       prometheus.Counter
	etlRecordsTotal            *prometheus.CounterVec
	etlRunsTotal               *prometheus.CounterVec
	etlRunDurationSeconds      prometheus.Histogram
	etlCleanupFixesTotal       *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		etlPagesFetchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "etl_pages_fetched_total",
				Help: "Total number of survey pages fetched.",
			},
		)

		etlRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_records_total",
				Help: "Total records processed, labeled by outcome (scraped, inserted).",
			},
			[]string{"outcome"},
		)

		etlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_runs_total",
				Help: "Total crawl runs, labeled by status (success, error, disallowed).",
			},
			[]string{"status"},
		)

		etlRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "etl_run_duration_seconds",
				Help:    "Histogram of end-to-end crawl run durations.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
		)

		etlCleanupFixesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_cleanup_fixes_total",
				Help: "Total rows corrected by the cleanup pass, labeled by kind (gre_aw, campus).",
			},
			[]string{"kind"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120, 600},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished crawl run and its accounting.
func ObserveRun(status string, pagesFetched, scraped, inserted int, duration time.Duration) {
	etlRunsTotal.WithLabelValues(status).Inc()
	etlRunDurationSeconds.Observe(duration.Seconds())
	etlPagesFetchedTotal.Add(float64(pagesFetched))
	etlRecordsTotal.WithLabelValues("scraped").Add(float64(scraped))
	etlRecordsTotal.WithLabelValues("inserted").Add(float64(inserted))
}

// ObserveCleanup records rows corrected by the cleanup pass.
func ObserveCleanup(greAW, campus int64) {
	if greAW > 0 {
		etlCleanupFixesTotal.WithLabelValues("gre_aw").Add(float64(greAW))
	}
	if campus > 0 {
		etlCleanupFixesTotal.WithLabelValues("campus").Add(float64(campus))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
