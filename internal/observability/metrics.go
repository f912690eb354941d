// Package observability exposes the Prometheus metrics of the service.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BasecampRequestsTotal counts outbound Basecamp API calls by method and status
	BasecampRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qadeck",
			Subsystem: "basecamp",
			Name:      "requests_total",
			Help:      "Total number of outbound Basecamp API requests",
		},
		[]string{"method", "status_code"},
	)

	// BasecampRequestDuration tracks outbound Basecamp API latency
	BasecampRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qadeck",
			Subsystem: "basecamp",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound Basecamp API requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// TokenRefreshesTotal counts refresh attempts by trigger (request, cron) and result
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qadeck",
			Subsystem: "tokens",
			Name:      "refreshes_total",
			Help:      "Total number of Basecamp token refresh attempts",
		},
		[]string{"trigger", "result"},
	)

	// TokenRefreshesCoalesced counts callers that shared an in-flight refresh
	TokenRefreshesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qadeck",
			Subsystem: "tokens",
			Name:      "refreshes_coalesced_total",
			Help:      "Refresh requests served by an already in-flight refresh",
		},
	)

	// CardOperationsTotal counts card workflow operations by action and result
	CardOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qadeck",
			Subsystem: "cards",
			Name:      "operations_total",
			Help:      "Total number of card workflow operations",
		},
		[]string{"action", "result"},
	)

	// CacheLookupsTotal counts card list cache hits and misses
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qadeck",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Card list cache lookups by result",
		},
		[]string{"result"},
	)
)

// ObserveBasecampRequest records one outbound call. status 0 means transport failure.
func ObserveBasecampRequest(method string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	BasecampRequestsTotal.WithLabelValues(method, code).Inc()
	BasecampRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Result maps an error to the "success"/"failure" label
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
