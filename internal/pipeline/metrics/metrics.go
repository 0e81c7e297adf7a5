package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceCalls tracks external source API calls per network and endpoint.
	SourceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletfeed_source_calls_total",
			Help: "Total number of source API calls",
		},
		[]string{"network", "source", "endpoint"},
	)

	// SourceErrors tracks failed source API calls.
	SourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletfeed_source_errors_total",
			Help: "Total number of failed source API calls",
		},
		[]string{"network", "source", "endpoint"},
	)

	// RecordsNormalized tracks canonical records produced per adapter.
	RecordsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletfeed_records_normalized_total",
			Help: "Total number of canonical transaction records produced",
		},
		[]string{"network", "source"},
	)

	// Fallbacks tracks primary-adapter failures that degraded to the RPC scan.
	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletfeed_fallbacks_total",
			Help: "Total number of indexer-to-RPC fallbacks",
		},
		[]string{"network"},
	)

	// PriceBatchCalls tracks batched historical price queries. Bounded by
	// distinct (date, asset) groups, never by record count.
	PriceBatchCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletfeed_price_batch_calls_total",
			Help: "Total number of batched historical price queries",
		},
	)

	// PriceCacheHits tracks (date, asset) prices served from cache.
	PriceCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletfeed_price_cache_hits_total",
			Help: "Total number of price cache hits",
		},
	)

	// FetchDuration tracks end-to-end orchestration latency per network.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletfeed_fetch_duration_seconds",
			Help:    "Duration of a full fetch-all-transactions run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network"},
	)
)
