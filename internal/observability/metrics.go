// Package observability provides Prometheus metrics for simulation runs.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

// Metrics holds the simulator metrics.
type Metrics struct {
	TradesExecuted   *prometheus.CounterVec
	GasPerTrade      prometheus.Histogram
	RunsTotal        *prometheus.CounterVec
	RollbackFailures prometheus.Counter
	BatchDuration    prometheus.Histogram
}

// NewMetrics registers the metrics on reg. A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "swapsim"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TradesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "trades_executed_total",
			Help:      "Total number of executed trades by direction",
		}, []string{"direction"}),
		GasPerTrade: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "trade_gas_used",
			Help:      "Gas used per executed trade",
			Buckets:   prometheus.ExponentialBuckets(25_000, 2, 8),
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "runs_total",
			Help:      "Total number of finished runs by final state",
		}, []string{"state"}),
		RollbackFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "rollback_failures_total",
			Help:      "Total number of scopes whose state could not be restored",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a batch of random walks",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
	}
}

// TradeExecuted implements simulation.Observer.
func (m *Metrics) TradeExecuted(dir domain.Direction, gasUsed uint64) {
	m.TradesExecuted.WithLabelValues(dir.String()).Inc()
	m.GasPerTrade.Observe(float64(gasUsed))
}

// RunFinished implements simulation.Observer.
func (m *Metrics) RunFinished(state domain.RunState) {
	m.RunsTotal.WithLabelValues(string(state)).Inc()
}

// RecordRollbackFailure counts a failed restore.
func (m *Metrics) RecordRollbackFailure() {
	m.RollbackFailures.Inc()
}

// RecordBatch records the duration of a finished batch.
func (m *Metrics) RecordBatch(seconds float64) {
	m.BatchDuration.Observe(seconds)
}

// Handler returns an HTTP handler for the /metrics endpoint of gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
