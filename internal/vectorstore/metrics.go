// Package vectorstore provides Prometheus metrics for store monitoring.
package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectionsTotal tracks the number of live collections.
	CollectionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragd",
			Subsystem: "vectorstore",
			Name:      "collections_total",
			Help:      "Total number of live vector collections",
		},
	)

	// SearchesTotal counts searches by outcome.
	// Labels: result (success, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"result"},
	)

	// ChunksInserted counts chunks accepted by Add.
	ChunksInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "vectorstore",
			Name:      "chunks_inserted_total",
			Help:      "Total number of chunks inserted across all collections",
		},
	)
)
