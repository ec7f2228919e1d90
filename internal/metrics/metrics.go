package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MintsTotal counts mints by status
	MintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_mints_total",
			Help: "Total number of mint operations",
		},
		[]string{"status"},
	)

	// BurnsTotal counts burns by status
	BurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_burns_total",
			Help: "Total number of burn operations",
		},
		[]string{"status"},
	)

	// SalesTotal counts settled and failed sales
	SalesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_sales_total",
			Help: "Total number of buy operations",
		},
		[]string{"status"},
	)

	// SaleAmount tracks sale prices in the smallest native unit
	SaleAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_sale_amount",
			Help:    "Sale price in the smallest native unit",
			Buckets: prometheus.ExponentialBuckets(1e6, 10, 12),
		},
		[]string{"currency"},
	)

	// ActiveListings tracks the number of listings currently open
	ActiveListings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_active_listings",
			Help: "Number of listings currently active",
		},
	)

	// IndexedEvents counts events drained into the index store
	IndexedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_indexed_events_total",
			Help: "Total number of events written to the index store",
		},
		[]string{"kind"},
	)

	// IndexerLag tracks the last indexed event sequence number
	IndexerLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_indexer_last_seq",
			Help: "Sequence number of the last indexed event",
		},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// RPCDuration tracks request handling time per method
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_rpc_duration_seconds",
			Help:    "RPC request handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)
