// Package metrics provides Prometheus metrics for the nurture service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcome labels.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Manager owns every Prometheus collector the service exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Lead lifecycle
	leadsCaptured  *prometheus.CounterVec
	leadsScored    *prometheus.CounterVec
	sendsScheduled *prometheus.CounterVec

	// Delivery
	deliveries       *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	dispatchClaimed  prometheus.Counter
	dispatchLost     prometheus.Counter

	// Upstream collaborators
	upstreamLatency *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec

	// Queue and workers
	queueSize     prometheus.Gauge
	workersActive prometheus.Gauge

	// Backlog by send status, refreshed periodically
	sendsByStatus *prometheus.GaugeVec

	// System
	systemMemoryUsage   prometheus.Gauge
	systemGoroutines    prometheus.Gauge
	systemGCPauseMillis prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nurture",
		subsystem:        "service",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat collector declarations
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_errors_total",
		Help:      "HTTP error responses by endpoint and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.leadsCaptured = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leads_captured_total",
		Help:      "Leads captured by source (contact, newsletter, assessment)",
	}, []string{"source"})

	m.leadsScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leads_scored_total",
		Help:      "Scored assessments by resulting tier",
	}, []string{"tier"})

	m.sendsScheduled = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sends_scheduled_total",
		Help:      "Scheduled sends created, by sequence",
	}, []string{"sequence"})

	m.deliveries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deliveries_total",
		Help:      "Delivery attempts by channel and terminal outcome",
	}, []string{"channel", "outcome"})

	m.dispatchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_duration_milliseconds",
		Help:      "Duration of one dispatcher sweep in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.dispatchClaimed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_claimed_total",
		Help:      "Scheduled sends claimed by a dispatcher sweep",
	})

	m.dispatchLost = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_claim_lost_total",
		Help:      "Due sends skipped because another sweep claimed them first",
	})

	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_latency_milliseconds",
		Help:      "Latency of calls to third-party collaborators",
		Buckets:   m.histogramBuckets,
	}, []string{"provider"})

	m.upstreamErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_errors_total",
		Help:      "Failed calls to third-party collaborators",
	}, []string{"provider"})

	m.webhookEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "payment_webhook_events_total",
		Help:      "Payment webhook events by type and handling result",
	}, []string{"type", "result"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_queue_size",
		Help:      "Delivery jobs waiting for a worker",
	})

	m.workersActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_workers_active",
		Help:      "Delivery workers currently running",
	})

	m.sendsByStatus = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scheduled_sends",
		Help:      "Scheduled sends by status; due counts pending sends already past their time",
	}, []string{"status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseMillis = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause in milliseconds",
	})
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint counts an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordLeadCaptured counts a captured lead.
func RecordLeadCaptured(source string) {
	globalManager.leadsCaptured.WithLabelValues(source).Inc()
}

// RecordLeadScored counts a scored assessment.
func RecordLeadScored(tier string) {
	globalManager.leadsScored.WithLabelValues(tier).Inc()
}

// RecordSendsScheduled adds newly created sends for a sequence.
func RecordSendsScheduled(sequence string, n int) {
	if n > 0 {
		globalManager.sendsScheduled.WithLabelValues(sequence).Add(float64(n))
	}
}

// RecordDelivery counts a terminal delivery outcome.
func RecordDelivery(channel, outcome string) {
	globalManager.deliveries.WithLabelValues(channel, outcome).Inc()
}

// RecordDispatch observes one sweep.
func RecordDispatch(durationMs float64, claimed, lost int) {
	globalManager.dispatchDuration.Observe(durationMs)
	globalManager.dispatchClaimed.Add(float64(claimed))
	globalManager.dispatchLost.Add(float64(lost))
}

// RecordUpstreamCall observes a collaborator call.
func RecordUpstreamCall(provider string, durationMs float64, err error) {
	globalManager.upstreamLatency.WithLabelValues(provider).Observe(durationMs)
	if err != nil {
		globalManager.upstreamErrors.WithLabelValues(provider).Inc()
	}
}

// RecordWebhookEvent counts a payment webhook event.
func RecordWebhookEvent(eventType, result string) {
	globalManager.webhookEvents.WithLabelValues(eventType, result).Inc()
}

// UpdateQueueSize sets the delivery queue gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// AddActiveWorkers moves the active worker gauge by delta.
func AddActiveWorkers(delta int) {
	globalManager.workersActive.Add(float64(delta))
}

// UpdateSendCounts sets the scheduled-send backlog gauges.
func UpdateSendCounts(pending, due, inFlight, sent, failed int) {
	globalManager.sendsByStatus.WithLabelValues("pending").Set(float64(pending))
	globalManager.sendsByStatus.WithLabelValues("due").Set(float64(due))
	globalManager.sendsByStatus.WithLabelValues("in_flight").Set(float64(inFlight))
	globalManager.sendsByStatus.WithLabelValues("sent").Set(float64(sent))
	globalManager.sendsByStatus.WithLabelValues("failed").Set(float64(failed))
}

// UpdateSystemMemoryUsage sets the heap allocation gauge in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutines.Set(float64(count))
}

// RecordSystemGCPauseTime sets the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseMillis.Set(pauseMs)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
