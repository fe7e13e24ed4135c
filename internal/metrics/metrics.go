package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsSubmitted counts write submissions by kind and outcome (submitted, rejected)
	TransactionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_transactions_submitted_total",
			Help: "Total number of write transactions handed to the chain",
		},
		[]string{"kind", "outcome"},
	)

	// TransactionsResolved counts settled transactions by kind and final status
	TransactionsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_transactions_resolved_total",
			Help: "Total number of transactions confirmed or failed",
		},
		[]string{"kind", "status"},
	)

	// ConfirmationDuration tracks time from submission to settlement
	ConfirmationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdfund_confirmation_duration_seconds",
			Help:    "Time between submission and confirmation in seconds",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	// PendingTransactions tracks the number of pending ledger entries
	PendingTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_pending_transactions",
			Help: "Number of pending transactions in the ledger",
		},
	)

	// GasUsed tracks gas used for write transactions
	GasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdfund_gas_used",
			Help:    "Gas used for write transactions",
			Buckets: []float64{21000, 50000, 100000, 200000, 300000, 500000, 1000000},
		},
		[]string{"kind"},
	)

	// ChainReads counts contract read calls by method and status
	ChainReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_chain_reads_total",
			Help: "Total number of contract read calls",
		},
		[]string{"method", "status"},
	)

	// CachedCampaigns tracks the number of campaigns in the cache
	CachedCampaigns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_cached_campaigns",
			Help: "Number of campaigns held in the campaign cache",
		},
	)

	// LastRefreshBlock tracks the last block scanned for CampaignCreated events
	LastRefreshBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_last_processed_block",
			Help: "Last block scanned for CampaignCreated events",
		},
	)

	// UnreadNotifications tracks the unread notification count
	UnreadNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_unread_notifications",
			Help: "Number of unread notifications",
		},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
