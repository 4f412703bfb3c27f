package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce                 sync.Once
	apiRequestsTotal            *prometheus.CounterVec
	apiLatencySeconds           *prometheus.HistogramVec
	apiErrorsTotal              *prometheus.CounterVec
	liveViewSubscriptionsActive prometheus.Gauge
	liveViewSnapshotsEmitted    prometheus.Counter
	liveViewRecombinations      prometheus.Counter
	feedConnectionsTotal        prometheus.Counter
	gradeComputationsTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	metricsOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classpulse_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classpulse_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classpulse_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		liveViewSubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "classpulse_liveview_subscriptions_active",
			Help: "Number of live view subscriptions currently running.",
		})

		liveViewSnapshotsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classpulse_liveview_snapshots_emitted_total",
			Help: "Total combined snapshots emitted to live view consumers.",
		})

		liveViewRecombinations = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classpulse_liveview_recombinations_total",
			Help: "Total recombination passes executed by live view event loops.",
		})

		feedConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classpulse_feed_connections_total",
			Help: "Total websocket live feed connections accepted.",
		})

		gradeComputationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classpulse_grade_computations_total",
			Help: "Total gradebook computations performed, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			liveViewSubscriptionsActive,
			liveViewSnapshotsEmitted,
			liveViewRecombinations,
			feedConnectionsTotal,
			gradeComputationsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// LiveViewSubscriptionsActive exposes the active subscription gauge.
func LiveViewSubscriptionsActive() prometheus.Gauge {
	RegisterMetrics()
	return liveViewSubscriptionsActive
}

// LiveViewSnapshotsEmitted exposes the emitted snapshot counter.
func LiveViewSnapshotsEmitted() prometheus.Counter {
	RegisterMetrics()
	return liveViewSnapshotsEmitted
}

// LiveViewRecombinations exposes the recombination counter.
func LiveViewRecombinations() prometheus.Counter {
	RegisterMetrics()
	return liveViewRecombinations
}

// FeedConnectionsTotal exposes the websocket connection counter.
func FeedConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return feedConnectionsTotal
}

// GradeComputations exposes the gradebook computation counter.
func GradeComputations() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeComputationsTotal
}
