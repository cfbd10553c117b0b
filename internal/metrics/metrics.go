package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the collector
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Job Metrics
	JobRunsTotal    *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	JobsQueued      *prometheus.CounterVec
	ScheduleEntries prometheus.Gauge
	QueueLength     prometheus.Gauge
	QueuePending    prometheus.Gauge

	// Collection Metrics
	RecordsTotal     *prometheus.CounterVec
	AttachmentsTotal *prometheus.CounterVec
}

var (
	defaultRegistry *MetricsRegistry
	once            sync.Once
)

// Default returns the process-wide registry. promauto registers on first use only.
func Default() *MetricsRegistry {
	once.Do(func() {
		defaultRegistry = NewMetricsRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewMetricsRegistry registers every collector metric with reg
func NewMetricsRegistry(reg prometheus.Registerer) *MetricsRegistry {
	factory := promauto.With(reg)

	return &MetricsRegistry{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collector_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		JobRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_job_runs_total",
				Help: "Collect, validate and cleanup runs by outcome",
			},
			[]string{"job", "outcome"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_job_duration_seconds",
				Help:    "Job run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"job"},
		),
		JobsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_jobs_dispatched_total",
				Help: "Jobs dispatched to workers by kind and trigger",
			},
			[]string{"job", "trigger"},
		),
		ScheduleEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_schedule_entries",
				Help: "Number of configs with a registered schedule",
			},
		),
		QueueLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_job_queue_length",
				Help: "Messages in the job stream",
			},
		),
		QueuePending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_job_queue_pending",
				Help: "Delivered but unacknowledged job messages",
			},
		),

		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_records_total",
				Help: "Records processed by platform and action",
			},
			[]string{"platform", "action"},
		),
		AttachmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_attachments_total",
				Help: "Attachments processed by action",
			},
			[]string{"action"},
		),
	}
}
