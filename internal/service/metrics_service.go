package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/admissions-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the summary cache and the admission pipeline.
type MetricsService struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestDuration      *prometheus.HistogramVec
	requestTotal         *prometheus.CounterVec
	cacheLatency         prometheus.Observer
	cacheWrite           prometheus.Observer
	cacheLookups         *prometheus.CounterVec
	statusTransitions    *prometheus.CounterVec
	capacityExhausted    *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	mailQueueDepth       prometheus.Gauge
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	statusTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_status_transitions_total",
		Help: "Applicant status transitions by source and target status",
	}, []string{"from", "to"})

	capacityExhausted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_capacity_exhausted_total",
		Help: "Times an applicant was queued because no schedule had free capacity",
	}, []string{"resource"})

	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_notification_failures_total",
		Help: "Notification dispatch failures by channel",
	}, []string{"channel"})

	mailQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admissions_mail_queue_depth",
		Help: "Status mails waiting in the in-memory queue",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups, statusTransitions, capacityExhausted, notificationFailures, mailQueueDepth, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheLookups:         cacheLookups,
		statusTransitions:    statusTransitions,
		capacityExhausted:    capacityExhausted,
		notificationFailures: notificationFailures,
		mailQueueDepth:       mailQueueDepth,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup and its latency.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTransition counts one applicant status change.
func (m *MetricsService) RecordTransition(from, to models.ApplicantStatus) {
	if m == nil {
		return
	}
	label := string(from)
	if label == "" {
		label = "none"
	}
	m.statusTransitions.WithLabelValues(label, string(to)).Inc()
}

// RecordCapacityExhausted counts an applicant queued on a full resource.
func (m *MetricsService) RecordCapacityExhausted(resource string) {
	if m == nil {
		return
	}
	m.capacityExhausted.WithLabelValues(resource).Inc()
}

// RecordNotificationFailure counts a dispatch failure on channel ("mail", "in_app").
func (m *MetricsService) RecordNotificationFailure(channel string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(channel).Inc()
}

// SetMailQueueDepth publishes the number of buffered status mails.
func (m *MetricsService) SetMailQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.mailQueueDepth.Set(float64(depth))
}
