package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// indexTotal counts indexing calls.
	// Labels: result (success, error)
	indexTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexigraph",
		Subsystem: "index",
		Name:      "total",
		Help:      "Total indexing calls by result",
	}, []string{"result"})

	// indexDuration measures the wall time of successful indexing calls.
	indexDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lexigraph",
		Subsystem: "index",
		Name:      "duration_seconds",
		Help:      "Indexing call latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// indexElements counts indexed document elements.
	// Labels: kind (paragraph, table, outline)
	indexElements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexigraph",
		Subsystem: "index",
		Name:      "elements_total",
		Help:      "Total indexed elements by kind",
	}, []string{"kind"})
)
