package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Throughput metrics - Track pipeline volume
var (
	RoundsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patron_rounds_started_total",
		Help: "Total number of funding rounds opened on the ledger",
	})

	RoundsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patron_rounds_failed_total",
		Help: "Total number of rounds aborted because the ledger round start failed",
	})

	CandidatesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patron_candidates_discovered_total",
			Help: "Total number of candidates returned by the scanner, by strategy",
		},
		[]string{"strategy"},
	)

	CandidatesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patron_candidates_evaluated_total",
		Help: "Total number of candidates that went through the decision gate",
	})

	CandidatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patron_candidates_skipped_total",
			Help: "Total number of candidates skipped, by reason",
		},
		[]string{"reason"},
	)

	GrantsDisbursed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patron_grants_disbursed_total",
		Help: "Total number of confirmed disbursements",
	})

	EtherDisbursed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patron_ether_disbursed_total",
		Help: "Total ETH transferred to grant recipients",
	})
)

// Error metrics - Track external failures
var (
	ReadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patron_read_failures_total",
			Help: "Total number of recovered external read failures, by source",
		},
		[]string{"source"},
	)

	LedgerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patron_ledger_errors_total",
			Help: "Total number of failed ledger writes, by operation",
		},
		[]string{"operation"},
	)

	NotifierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patron_notifier_failures_total",
			Help: "Total number of swallowed notifier failures, by notifier",
		},
		[]string{"notifier"},
	)

	StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patron_storage_errors_total",
		Help: "Total number of failed audit writes",
	})
)

// State metrics - Track current agent state
var (
	WalletBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "patron_wallet_balance_ether",
		Help: "Last observed balance of the funding wallet in ETH",
	})

	CurrentRound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "patron_current_round",
		Help: "Round counter of the active funding round",
	})

	RoundGrants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "patron_round_grants",
		Help: "Grants issued in the active round",
	})

	GrantedAddresses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "patron_granted_addresses",
		Help: "Number of addresses in the granted set",
	})
)

// Performance metrics - Track distribution and latency
var (
	ScoreTotals = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "patron_score_total",
		Help:    "Distribution of weighted score totals",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	RoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "patron_round_duration_seconds",
		Help:    "Time taken to run a single round from start to summary",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	DatabaseInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "patron_db_insert_duration_seconds",
		Help:    "Time taken to execute audit INSERT operations",
		Buckets: prometheus.DefBuckets,
	})
)
