// Package metrics provides Prometheus metrics for the usage pipeline.
//
// The pipeline is a batch job, so metrics are written to a node-exporter
// textfile at the end of a run instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics of the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingest
	tableRows       *prometheus.GaugeVec
	tableLoadErrors *prometheus.CounterVec
	intervals       *prometheus.CounterVec

	// Validation
	clampOutcomes       *prometheus.CounterVec
	invariantViolations *prometheus.CounterVec

	// Pipeline
	stageDuration *prometheus.HistogramVec
	usagePoints   *prometheus.CounterVec
	sitesDone     *prometheus.CounterVec
	lastRunUnix   prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActive  prometheus.Gauge
	workerErrors  prometheus.Counter
	workerLatency prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "spanline",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.tableRows = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "raw_table_rows",
		Help: "Rows read from each raw table in the last run",
	}, []string{"site", "table"})
	m.tableLoadErrors = m.counterVec("raw_table_load_errors_total",
		"Raw table load failures by kind (missing, auth, remote)", "site", "table", "kind")
	m.intervals = m.counterVec("intervals_total",
		"Intervals produced by each adapter", "site", "source")

	m.clampOutcomes = m.counterVec("clamp_outcomes_total",
		"Hierarchy validation results by metric and coerce action", "site", "metric", "action")
	m.invariantViolations = m.counterVec("row_invariant_violations_total",
		"Sources whose raw rows were not fully accounted for", "site", "source")

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: m.histogramBuckets,
	}, []string{"stage"})
	m.usagePoints = m.counterVec("usage_points_total",
		"Usage points emitted", "site", "collector_type")
	m.sitesDone = m.counterVec("sites_total",
		"Sites processed by outcome", "status")
	m.lastRunUnix = m.gauge("last_run_timestamp_seconds",
		"Unix time the last run finished")

	m.queueSize = m.gauge("queue_size", "Site jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum site jobs the queue accepts")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Site jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Site jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Site jobs rejected by the queue")

	m.workerActive = m.gauge("worker_active", "Workers currently running a site")
	m.workerErrors = m.counter("worker_errors_total", "Site jobs that failed in a worker")
	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "worker_job_duration_seconds",
		Help:    "Time a worker spent on one site",
		Buckets: m.histogramBuckets,
	})
}

// SetTableRows records the row count of a loaded raw table.
func SetTableRows(site, table string, rows int) {
	globalManager.tableRows.WithLabelValues(site, table).Set(float64(rows))
}

// RecordTableLoadError counts a classified raw table failure.
func RecordTableLoadError(site, table, kind string) {
	globalManager.tableLoadErrors.WithLabelValues(site, table, kind).Inc()
}

// RecordIntervals counts intervals produced by an adapter.
func RecordIntervals(site, source string, n int) {
	globalManager.intervals.WithLabelValues(site, source).Add(float64(n))
}

// RecordClampOutcome counts validated rows by metric and coerce action.
func RecordClampOutcome(site, metric, action string, n int) {
	globalManager.clampOutcomes.WithLabelValues(site, metric, action).Add(float64(n))
}

// RecordInvariantViolation counts a source that failed the row invariant.
func RecordInvariantViolation(site, source string) {
	globalManager.invariantViolations.WithLabelValues(site, source).Inc()
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordUsagePoints counts emitted usage points.
func RecordUsagePoints(site, collector string, n int) {
	globalManager.usagePoints.WithLabelValues(site, collector).Add(float64(n))
}

// RecordSite counts a finished site by status ("ok" or "failed").
func RecordSite(status string) {
	globalManager.sitesDone.WithLabelValues(status).Inc()
}

// MarkRunFinished stores the finish time of the run.
func MarkRunFinished(t time.Time) {
	globalManager.lastRunUnix.Set(float64(t.Unix()))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerLatency records the time spent on one job.
func RecordWorkerLatency(d time.Duration) {
	globalManager.workerLatency.Observe(d.Seconds())
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current metrics in text exposition format, for the
// node-exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	return nil
}
