package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// backendReqs counts backend calls by method, route template and status
	// ("error" for transport failures).
	backendReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of calls to the platform backend.",
		},
		[]string{"method", "route", "status"},
	)

	backendLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Duration of platform backend calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(backendReqs, backendLat)
}

func observe(method, route, status string, start time.Time) {
	backendReqs.WithLabelValues(method, route, status).Inc()
	backendLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
