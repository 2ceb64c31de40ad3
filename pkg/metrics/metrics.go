// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transitions_total",
			Help: "Transaction state changes by type and resulting status",
		},
		[]string{"type", "status"},
	)

	BalanceApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_balance_applied_total",
			Help: "Absolute amount applied to wallet balances, by transaction type",
		},
		[]string{"type"},
	)

	WalletUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_control_updates_total",
			Help: "Wallet status and permission changes",
		},
		[]string{"field"},
	)

	PositionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "investment_positions_opened_total",
			Help: "Investment positions opened",
		},
	)

	PositionsMatured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "investment_positions_matured_total",
			Help: "Investment positions matured",
		},
	)

	EarningsCredited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "investment_earnings_credited_total",
			Help: "Sum of accrued earnings credited to wallets",
		},
	)

	AccrualSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "investment_accrual_sweep_duration_seconds",
			Help:    "Duration of scheduled accrual sweeps",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
