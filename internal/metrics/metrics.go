// Package metrics provides Prometheus metrics for the config store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the Prometheus registry for all confhub metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

var (
	// RequestsTotal counts handled HTTP requests by route and status.
	RequestsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "confhub_http_requests_total",
		Help: "Total HTTP requests handled",
	}, []string{"method", "route", "status"})

	// RequestDuration observes request latency by route.
	RequestDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confhub_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// IdentityCalls counts outbound identity service calls by outcome.
	IdentityCalls = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "confhub_identity_calls_total",
		Help: "Total identity service calls",
	}, []string{"call", "outcome"})
)
