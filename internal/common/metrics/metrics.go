package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_created_total",
			Help: "Transactions persisted by the ledger, by stored status",
		},
		[]string{"status"},
	)

	TransactionsReversed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transactions_reversed_total",
			Help: "Successful reversals",
		},
	)

	CompensationWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_compensation_writes_total",
			Help: "Compensating Failed-row writes, by outcome",
		},
		[]string{"outcome"},
	)

	LedgerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_failures_total",
			Help: "Ledger operations that returned an error, by operation and error code",
		},
		[]string{"operation", "error_code"},
	)

	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	EligibilityCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_eligibility_cache_lookups_total",
			Help: "Eligibility cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
