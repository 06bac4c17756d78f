package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DistributionCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yap_engine_distribution_cycles_total",
			Help: "Total number of distribution cycle runs",
		},
		[]string{"status"}, // submitted, noop, error
	)

	DistributionCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yap_engine_distribution_cycle_duration_seconds",
			Help:    "Duration of distribution cycle runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~410s
		},
	)

	ClaimEventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yap_engine_claim_events_recorded_total",
			Help: "Total number of claim event inserts",
		},
		[]string{"status"}, // recorded, duplicate
	)

	IntegrityClampTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yap_engine_unclaimed_clamp_total",
			Help: "Times a computed unclaimed total was negative and clamped to zero",
		},
	)

	SnapshotBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yap_engine_snapshot_batches_total",
			Help: "Total number of wallet snapshot batch writes",
		},
		[]string{"status"},
	)

	RPCRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yap_engine_rpc_retries_total",
			Help: "Total number of retried Solana RPC calls",
		},
	)
)
