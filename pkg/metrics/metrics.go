package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all scheduling-client metrics.
type Metrics struct {
	// Gateway metrics
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	GatewayRetries  *prometheus.CounterVec

	// Availability cache metrics
	AvailabilityCacheHits   prometheus.Counter
	AvailabilityCacheMisses prometheus.Counter

	// Scheduling flow metrics
	SubmitAttempts      *prometheus.CounterVec
	ConflictsPresented  prometheus.Counter
	StaleResultsDropped prometheus.Counter
}

// New creates scheduling-client metrics registered on the given
// registerer. Passing a fresh registry keeps tests isolated.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of gateway calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of gateway calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		GatewayRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_retries_total",
			Help:      "Total number of transient-failure retries by operation",
		}, []string{"operation"}),
		AvailabilityCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_cache_hits_total",
			Help:      "Availability lookups served from the local cache",
		}),
		AvailabilityCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_cache_misses_total",
			Help:      "Availability lookups that went to the remote API",
		}),
		SubmitAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_attempts_total",
			Help:      "Booking submissions by terminal outcome",
		}, []string{"outcome"}),
		ConflictsPresented: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_presented_total",
			Help:      "Times a booking conflict was surfaced to the user",
		}),
		StaleResultsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_dropped_total",
			Help:      "Superseded async results discarded by attempt token",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.GatewayRequests,
			m.GatewayLatency,
			m.GatewayRetries,
			m.AvailabilityCacheHits,
			m.AvailabilityCacheMisses,
			m.SubmitAttempts,
			m.ConflictsPresented,
			m.StaleResultsDropped,
		)
	}

	return m
}
