// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Pool lifecycle
	PoolsCreated prometheus.Counter
	Graduations  prometheus.Counter

	// Trading
	TradesExecuted *prometheus.CounterVec // side: buy|sell
	TradeVolume    *prometheus.CounterVec // side: buy|sell, settlement units
	OracleUpdates  prometheus.Counter

	// Withdrawals
	Withdrawals      *prometheus.CounterVec // kind: fees|reserve|emergency
	WithdrawalVolume *prometheus.CounterVec // kind: fees|reserve|emergency

	// Failures
	OperationErrors *prometheus.CounterVec // op

	// Per-pool state
	PoolReserve     *prometheus.GaugeVec // creator, symbol
	PoolCirculating *prometheus.GaugeVec // creator, symbol
}

// NewMetrics creates a new Metrics instance with all metrics registered
// on the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curvepool"
	}

	return &Metrics{
		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pools_created_total",
			Help:      "Total number of pools created",
		}),
		Graduations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graduations_total",
			Help:      "Total number of pools graduated to oracle pricing",
		}),
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Total number of executed trades",
		}, []string{"side"}),
		TradeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_volume_total",
			Help:      "Total settlement volume traded",
		}, []string{"side"}),
		OracleUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_updates_total",
			Help:      "Total number of oracle price updates",
		}),
		Withdrawals: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Total number of creator withdrawals",
		}, []string{"kind"}),
		WithdrawalVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_volume_total",
			Help:      "Total settlement volume withdrawn by creators",
		}, []string{"kind"}),
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total number of failed operations",
		}, []string{"op"}),
		PoolReserve: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_reserve",
			Help:      "Current tracked reserve per pool",
		}, []string{"creator", "symbol"}),
		PoolCirculating: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_circulating_supply",
			Help:      "Current circulating supply per pool",
		}, []string{"creator", "symbol"}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
