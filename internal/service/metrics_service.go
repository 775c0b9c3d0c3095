package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/pkg/jobs"
)

// MetricsService owns the process Prometheus registry. Alongside the exported
// collectors it keeps running totals that back the JSON summary endpoint.
// All methods are safe on a nil receiver.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration  *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpInFlight  prometheus.Gauge
	cacheLookup   *prometheus.HistogramVec
	cacheWrite    prometheus.Histogram
	cacheRatio    prometheus.Gauge
	dbDuration    *prometheus.HistogramVec
	gradesWritten prometheus.Counter
	results       *prometheus.CounterVec
	reportJobs    *prometheus.CounterVec

	totals struct {
		cacheHits, cacheMisses atomic.Uint64
		requests, requestNanos atomic.Uint64
		dbQueries, dbNanos     atomic.Uint64
		gradesWritten          atomic.Uint64
		inFlight               atomic.Int64
	}
}

// NewMetricsService builds a private registry with Go runtime and process
// collectors plus the grading engine's own series.
func NewMetricsService() *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &MetricsService{
		registry: reg,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
		cacheLookup: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_lookup_seconds",
			Help:    "Latency of result cache lookups",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"outcome"}),
		cacheWrite: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency of result cache writes",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		cacheRatio: f.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		dbDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		gradesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "grading_raw_grades_written_total",
			Help: "Raw grades inserted or updated",
		}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_results_computed_total",
			Help: "Student results computed, by overall status",
		}, []string{"status"}),
		reportJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_report_jobs_total",
			Help: "Report jobs by type and final status",
		}, []string{"type", "status"}),
	}
}

// Handler serves the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RequestStarted and RequestFinished bracket one in-flight request.
func (m *MetricsService) RequestStarted() {
	if m == nil {
		return
	}
	m.httpInFlight.Inc()
	m.totals.inFlight.Add(1)
}

func (m *MetricsService) RequestFinished() {
	if m == nil {
		return
	}
	m.httpInFlight.Dec()
	m.totals.inFlight.Add(-1)
}

// ObserveHTTPRequest records one completed request. path is the route
// template so label cardinality stays bounded.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.totals.requests.Add(1)
	m.totals.requestNanos.Add(uint64(duration))
}

// RecordCacheOperation records one cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
		m.totals.cacheHits.Add(1)
	} else {
		m.totals.cacheMisses.Add(1)
	}
	m.cacheLookup.WithLabelValues(outcome).Observe(duration.Seconds())
	m.cacheRatio.Set(ratio(m.totals.cacheHits.Load(), m.totals.cacheMisses.Load()))
}

// ObserveCacheWrite records one cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records the duration of a labelled query.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.totals.dbQueries.Add(1)
	m.totals.dbNanos.Add(uint64(duration))
}

// RecordGradesWritten counts raw grades persisted by grade entry.
func (m *MetricsService) RecordGradesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.gradesWritten.Add(float64(n))
	m.totals.gradesWritten.Add(uint64(n))
}

// RecordResult counts one computed student result.
func (m *MetricsService) RecordResult(status grading.Status) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(status)).Inc()
}

// RecordReportJob counts a report job reaching a terminal status.
func (m *MetricsService) RecordReportJob(reportType models.ReportType, status models.ReportStatus) {
	if m == nil {
		return
	}
	m.reportJobs.WithLabelValues(string(reportType), string(status)).Inc()
}

// RegisterQueue exposes depth and outcome counters for a job queue. Calling it
// twice for the same name panics.
func (m *MetricsService) RegisterQueue(name string, stats func() jobs.Stats) {
	if m == nil || stats == nil {
		return
	}
	f := promauto.With(m.registry)
	labels := prometheus.Labels{"queue": name}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "job_queue_depth", Help: "Jobs waiting in the queue", ConstLabels: labels,
	}, func() float64 { return float64(stats().Depth) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "job_queue_succeeded_total", Help: "Jobs completed successfully", ConstLabels: labels,
	}, func() float64 { return float64(stats().Succeeded) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "job_queue_retried_total", Help: "Job attempts scheduled for retry", ConstLabels: labels,
	}, func() float64 { return float64(stats().Retried) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "job_queue_dropped_total", Help: "Jobs abandoned after a permanent failure or the retry limit", ConstLabels: labels,
	}, func() float64 { return float64(stats().Dropped) })
}

// Snapshot summarises the running totals for the admin endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	t := &m.totals
	hits, misses := t.cacheHits.Load(), t.cacheMisses.Load()
	requests, dbQueries := t.requests.Load(), t.dbQueries.Load()

	return models.SystemMetrics{
		CacheHitRatio:            ratio(hits, misses),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		RequestsInFlight:         t.inFlight.Load(),
		AverageRequestDurationMs: averageMillis(t.requestNanos.Load(), requests),
		DBQueryCount:             dbQueries,
		AverageDBQueryDurationMs: averageMillis(t.dbNanos.Load(), dbQueries),
		RawGradesWritten:         t.gradesWritten.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func averageMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
