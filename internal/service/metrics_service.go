package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/insight-compliance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Observer
	verdicts           *prometheus.CounterVec
	logSourceFailures  *prometheus.CounterVec
	surveyRowsDropped  prometheus.Counter
	exportJobs         *prometheus.CounterVec
	smsSent            *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	evaluationCount      uint64
}

// MetricsSnapshot summarises process-level counters for the dashboard.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Evaluations              uint64    `json:"evaluations"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_evaluations_total",
		Help: "Participant compliance evaluations by result",
	}, []string{"result"})

	evaluationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compliance_evaluation_duration_seconds",
		Help:    "End-to-end duration of a participant evaluation",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_verdicts_total",
		Help: "Evaluated cells by verdict",
	}, []string{"verdict"})

	logSourceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "log_source_failures_total",
		Help: "Dispatch log groups that could not be queried",
	}, []string{"schedule", "slot"})

	surveyRowsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "survey_rows_dropped_total",
		Help: "Survey export rows dropped because they could not be parsed",
	})

	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_export_jobs_total",
		Help: "Export jobs by terminal status",
	}, []string{"status"})

	smsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_messages_total",
		Help: "Test SMS publish attempts by result",
	}, []string{"result"})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		evaluations, evaluationDuration, verdicts, logSourceFailures, surveyRowsDropped, exportJobs, smsSent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		evaluations:        evaluations,
		evaluationDuration: evaluationDuration,
		verdicts:           verdicts,
		logSourceFailures:  logSourceFailures,
		surveyRowsDropped:  surveyRowsDropped,
		exportJobs:         exportJobs,
		smsSent:            smsSent,
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

// Registry exposes the underlying registry (tests gather from it).
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveEvaluation records one participant evaluation. result is "ok" or an error code.
func (m *MetricsService) ObserveEvaluation(result string, duration time.Duration, grid *models.ComplianceGrid) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(result).Inc()
	m.evaluationDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.evaluationCount, 1)
	if grid == nil {
		return
	}
	for _, cell := range grid.Cells() {
		m.verdicts.WithLabelValues(string(cell.Verdict)).Inc()
	}
}

// RecordLogSourceFailure counts a dispatch log group that could not be read.
func (m *MetricsService) RecordLogSourceFailure(schedule models.ScheduleType, slot int) {
	if m == nil {
		return
	}
	m.logSourceFailures.WithLabelValues(schedule.Key(), fmt.Sprintf("%d", slot)).Inc()
}

// RecordDroppedSurveyRows counts unparseable survey rows.
func (m *MetricsService) RecordDroppedSurveyRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.surveyRowsDropped.Add(float64(n))
}

// RecordExportJob counts an export job reaching a terminal status.
func (m *MetricsService) RecordExportJob(status models.ExportStatus) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(string(status)).Inc()
}

// RecordSMS counts a test SMS publish attempt.
func (m *MetricsService) RecordSMS(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.smsSent.WithLabelValues(result).Inc()
}

// Snapshot returns aggregated metrics suitable for the dashboard.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Evaluations:              atomic.LoadUint64(&m.evaluationCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
