package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts index cycles by outcome
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_cycles_total",
			Help: "Total number of index cycles",
		},
		[]string{"status"},
	)

	// CycleDuration tracks full index cycle time
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dexlens_cycle_duration_seconds",
			Help:    "Index cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ObservationsResolved counts priced tokens per network
	ObservationsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_observations_resolved_total",
			Help: "Token price observations resolved per network",
		},
		[]string{"network"},
	)

	// ObservationsSkipped counts tokens dropped during resolution by stage
	ObservationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_observations_skipped_total",
			Help: "Token price observations skipped during resolution",
		},
		[]string{"network", "stage"},
	)

	// ChainFetchFailures counts whole-chain fetch failures per network
	ChainFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_chain_fetch_failures_total",
			Help: "Price fetches that failed for an entire network",
		},
		[]string{"network"},
	)

	// SeriesRowsWritten counts series rows written per granularity
	SeriesRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_series_rows_written_total",
			Help: "Price series rows written per granularity",
		},
		[]string{"granularity"},
	)

	// SeriesWriteFailures counts failed series writes per granularity
	SeriesWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_series_write_failures_total",
			Help: "Price series writes that failed per granularity",
		},
		[]string{"granularity"},
	)

	// SwapsIngested counts swap rows stored per network
	SwapsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_swaps_ingested_total",
			Help: "Swap events stored per network",
		},
		[]string{"network"},
	)

	// CacheHits counts read-API cache hits and misses
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexlens_cache_requests_total",
			Help: "Read API cache lookups by result",
		},
		[]string{"result"},
	)
)
