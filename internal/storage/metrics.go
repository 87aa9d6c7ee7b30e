package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheEvents counts graph cache activity.
	// Labels: event (hit, miss, load, save, evict, delete)
	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexigraph",
		Subsystem: "cache",
		Name:      "events_total",
		Help:      "Graph cache events by kind",
	}, []string{"event"})
)
