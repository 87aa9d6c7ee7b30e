package extractor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// extractTotal counts extraction calls.
	// Labels: result (success, error, not_found), level (trigram, bigram, unigram, none)
	extractTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexigraph",
		Subsystem: "extract",
		Name:      "total",
		Help:      "Total extraction calls by result and matched level",
	}, []string{"result", "level"})

	// extractDuration measures extraction latency.
	extractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lexigraph",
		Subsystem: "extract",
		Name:      "duration_seconds",
		Help:      "Extraction call latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)
