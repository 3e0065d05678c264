package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation of the gateway.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamFailures *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	conflictsFound   *prometheus.GaugeVec
	staleRefreshes   prometheus.Counter
	viewSessions     prometheus.Gauge
	exportJobs       *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_fetch_duration_seconds",
		Help:    "Duration of timetable backend fetches per collection",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection"})

	upstreamFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_fetch_failures_total",
		Help: "Failed timetable backend fetches per collection",
	}, []string{"collection"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	conflictsFound := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "schedule_conflict_groups",
		Help: "Conflict groups found by the last detection per dimension",
	}, []string{"dimension"})

	staleRefreshes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "view_stale_refreshes_total",
		Help: "View refreshes discarded because a newer one started",
	})

	viewSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "view_sessions",
		Help: "Open schedule view sessions",
	})

	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_total",
		Help: "Export jobs by kind and final status",
	}, []string{"kind", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, upstreamDuration, upstreamFailures, cacheLatency, cacheWrite,
		cacheHits, cacheMisses, conflictsFound, staleRefreshes, viewSessions, exportJobs, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		upstreamDuration: upstreamDuration,
		upstreamFailures: upstreamFailures,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		conflictsFound:   conflictsFound,
		staleRefreshes:   staleRefreshes,
		viewSessions:     viewSessions,
		exportJobs:       exportJobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveUpstreamFetch records one backend fetch.
func (m *MetricsService) ObserveUpstreamFetch(collection string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(collection).Observe(duration.Seconds())
	if err != nil {
		m.upstreamFailures.WithLabelValues(collection).Inc()
	}
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// SetConflictGroups publishes the size of the last conflict report.
func (m *MetricsService) SetConflictGroups(dimension string, count int) {
	if m == nil {
		return
	}
	m.conflictsFound.WithLabelValues(dimension).Set(float64(count))
}

// IncStaleRefresh counts a discarded refresh.
func (m *MetricsService) IncStaleRefresh() {
	if m == nil {
		return
	}
	m.staleRefreshes.Inc()
}

// SetViewSessions publishes the number of open sessions.
func (m *MetricsService) SetViewSessions(n int) {
	if m == nil {
		return
	}
	m.viewSessions.Set(float64(n))
}

// IncExportJob counts a finished export job.
func (m *MetricsService) IncExportJob(kind, status string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(kind, status).Inc()
}
