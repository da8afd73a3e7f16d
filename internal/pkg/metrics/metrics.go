// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portfolio_tracker"

var (
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Upstream HTTP requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_attempts_total",
		Help:      "Retries scheduled after a retryable upstream failure.",
	}, []string{"operation"})

	PriceCacheResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_cache_results_total",
		Help:      "Price cache lookups by result (hit, miss, stale, fallback).",
	}, []string{"result"})

	WalletFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_fetches_total",
		Help:      "Wallet fetch outcomes by winning provider or placeholder.",
	}, []string{"source"})

	RefreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_cycle_duration_seconds",
		Help:      "Duration of refresh cycles.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind", "outcome"})

	TrackedWallets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_wallets",
		Help:      "Number of wallets in the last published snapshot.",
	})

	PortfolioValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "portfolio_total_value_usd",
		Help:      "Total value of the last published snapshot.",
	})
)

var registerOnce sync.Once

// MustRegisterMetrics registers all collectors with the default registry.
// Safe to call more than once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			UpstreamRequests,
			UpstreamLatency,
			RetryAttempts,
			PriceCacheResults,
			WalletFetches,
			RefreshDuration,
			TrackedWallets,
			PortfolioValue,
		)
	})
}
