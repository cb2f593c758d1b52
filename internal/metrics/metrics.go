// Package metrics defines the relay's Prometheus collectors on a
// private registry, exposed by the health server under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "annsync"

// Registry holds every collector below; the health server serves it.
var Registry = prometheus.NewRegistry()

var (
	PostsReceived = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_received_total",
		Help:      "Inbound channel posts decoded from the source.",
	})

	PostsRejected = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_rejected_total",
		Help:      "Posts dropped by the channel allow-list filter.",
	})

	UnitsForwarded = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_forwarded_total",
		Help:      "Outbound units handed to the forwarder, by result.",
	}, []string{"result"})

	ForwardErrors = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forward_errors_total",
		Help:      "Delivery failures by pipeline stage (resolve, fetch, deliver).",
	}, []string{"stage"})

	AlbumsOpen = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "albums_open",
		Help:      "Album buffers currently waiting out their quiet window.",
	})

	DeliveryDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "delivery_duration_seconds",
		Help:      "Wall time of one unit delivery, resolution through webhook response.",
		Buckets:   prometheus.DefBuckets,
	})
)
