// Package metrics provides prometheus collectors for engine operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains Prometheus metrics for attempt resolution and
// historical imports.
type EngineMetrics struct {
	registry *prometheus.Registry

	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration prometheus.Histogram

	importsTotal         *prometheus.CounterVec
	importedEffortsTotal prometheus.Counter
	skippedEffortsTotal  prometheus.Counter
	importDuration       prometheus.Histogram
}

// NewEngineMetrics creates and registers engine metrics.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() error {
	m.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_resolutions_total",
			Help: "Total number of best-attempt resolutions",
		},
		[]string{"outcome"}, // resolved, no_window, no_effort, error
	)

	m.resolutionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "engine_resolution_duration_seconds",
		Help: "Time taken to resolve a rider's best attempt for a season",
		// Resolutions fan out to the upstream API; seconds to minutes.
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	m.importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_imports_total",
			Help: "Total number of historical import runs",
		},
		[]string{"status"}, // success, error
	)

	m.importedEffortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_imported_efforts_total",
		Help: "Total number of efforts archived by import runs",
	})

	m.skippedEffortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_skipped_efforts_total",
		Help: "Total number of efforts skipped for falling outside every season window",
	})

	m.importDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_import_duration_seconds",
		Help:    "Time taken by a full historical import run",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	return nil
}

// Describe implements the Collector interface
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.resolutionsTotal.Describe(ch)
	m.resolutionDuration.Describe(ch)
	m.importsTotal.Describe(ch)
	m.importedEffortsTotal.Describe(ch)
	m.skippedEffortsTotal.Describe(ch)
	m.importDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.resolutionsTotal.Collect(ch)
	m.resolutionDuration.Collect(ch)
	m.importsTotal.Collect(ch)
	m.importedEffortsTotal.Collect(ch)
	m.skippedEffortsTotal.Collect(ch)
	m.importDuration.Collect(ch)
}

// RecordResolution records one resolution and its outcome
func (m *EngineMetrics) RecordResolution(outcome string) {
	m.resolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordResolutionDuration records how long a resolution took
func (m *EngineMetrics) RecordResolutionDuration(duration float64) {
	m.resolutionDuration.Observe(duration)
}

// RecordImport records one import run
func (m *EngineMetrics) RecordImport(status string) {
	m.importsTotal.WithLabelValues(status).Inc()
}

// RecordImportedEfforts adds to the archived-effort counter
func (m *EngineMetrics) RecordImportedEfforts(count int) {
	m.importedEffortsTotal.Add(float64(count))
}

// RecordSkippedEfforts adds to the skipped-effort counter
func (m *EngineMetrics) RecordSkippedEfforts(count int) {
	m.skippedEffortsTotal.Add(float64(count))
}

// RecordImportDuration records how long an import run took
func (m *EngineMetrics) RecordImportDuration(duration float64) {
	m.importDuration.Observe(duration)
}
