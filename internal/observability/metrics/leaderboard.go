package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LeaderboardMetrics contains Prometheus metrics for board computation.
type LeaderboardMetrics struct {
	registry *prometheus.Registry

	boardRequestsTotal *prometheus.CounterVec
	computeDuration    *prometheus.HistogramVec
}

// NewLeaderboardMetrics creates and registers leaderboard metrics.
func NewLeaderboardMetrics(registry *prometheus.Registry) (*LeaderboardMetrics, error) {
	m := &LeaderboardMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LeaderboardMetrics) initMetrics() error {
	m.boardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_requests_total",
			Help: "Total number of leaderboard requests",
		},
		[]string{"board", "status"}, // board: overall, climbing, descending, legacy
	)

	m.computeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaderboard_compute_duration_seconds",
			Help:    "Time taken to serve one board",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"board"},
	)

	return nil
}

// Describe implements the Collector interface
func (m *LeaderboardMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.boardRequestsTotal.Describe(ch)
	m.computeDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *LeaderboardMetrics) Collect(ch chan<- prometheus.Metric) {
	m.boardRequestsTotal.Collect(ch)
	m.computeDuration.Collect(ch)
}

// RecordBoardRequest records one board request and its status
func (m *LeaderboardMetrics) RecordBoardRequest(board, status string) {
	m.boardRequestsTotal.WithLabelValues(board, status).Inc()
}

// RecordComputeDuration records how long serving a board took
func (m *LeaderboardMetrics) RecordComputeDuration(board string, duration float64) {
	m.computeDuration.WithLabelValues(board).Observe(duration)
}
