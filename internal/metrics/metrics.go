// Package metrics exposes the Prometheus instrumentation for the vault
// engine and the instrument layer. All collectors are registered on the
// default registry via promauto and served by the web server's /metrics
// endpoint.
package metrics

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IntValue converts a big integer amount to a gauge value. Precision
// loss past float64's mantissa is acceptable for monitoring.
func IntValue(i sdkmath.Int) float64 {
	if i.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(i.BigInt()).Float64()
	return f
}

var (
	DepositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rvm",
		Subsystem: "vault",
		Name:      "deposits_total",
		Help:      "Number of completed deposits per vault.",
	}, []string{"vault"})

	WithdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rvm",
		Subsystem: "vault",
		Name:      "withdrawals_total",
		Help:      "Number of completed withdrawals per vault.",
	}, []string{"vault"})

	RotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rvm",
		Subsystem: "vault",
		Name:      "rotations_total",
		Help:      "Number of completed capital rotations per vault.",
	}, []string{"vault"})

	VaultTotalBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rvm",
		Subsystem: "vault",
		Name:      "total_balance",
		Help:      "Total pool value in asset base units.",
	}, []string{"vault"})

	VaultLockedAmount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rvm",
		Subsystem: "vault",
		Name:      "locked_amount",
		Help:      "Asset value locked in the current short position.",
	}, []string{"vault"})

	VaultShareSupply = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rvm",
		Subsystem: "vault",
		Name:      "share_supply",
		Help:      "Outstanding vault shares.",
	}, []string{"vault"})

	InstrumentPurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rvm",
		Subsystem: "instrument",
		Name:      "purchases_total",
		Help:      "Number of multi-leg instrument purchases per instrument.",
	}, []string{"instrument"})

	InstrumentExercisesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rvm",
		Subsystem: "instrument",
		Name:      "exercises_total",
		Help:      "Number of position exercises per instrument.",
	}, []string{"instrument"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rvm",
		Subsystem: "web",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status.",
	}, []string{"route", "status"})
)
