package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drawqueue"

var (
	// Joins counts join calls by outcome: active, waiting or existing.
	Joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "joins_total",
		Help:      "Join calls by outcome.",
	}, []string{"result"})

	Leaves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaves_total",
		Help:      "Entries removed by an explicit leave.",
	})

	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promotions_total",
		Help:      "Waiting entries promoted to active.",
	})

	// Reaped counts entries removed by expiry, labelled by the status they held.
	Reaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaped_total",
		Help:      "Entries removed because their deadline passed.",
	}, []string{"status"})

	ConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflict_retries_total",
		Help:      "Transitions retried after losing a race for the product lock.",
	})

	ReapDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reap_duration_seconds",
		Help:      "Duration of reaper sweeps.",
		Buckets:   prometheus.DefBuckets,
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers",
		Help:      "Live push connections held by this process.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Connections dropped because they could not keep up.",
	})
)

// Handler serves the default registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
