// Package metrics exposes Prometheus collectors for the resolution core
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the collectors below
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeStale   = "stale"
)

var (
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subly_provider_requests_total",
			Help: "Total number of external provider calls per provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subly_provider_request_duration_seconds",
			Help:    "External provider call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subly_cache_lookups_total",
			Help: "Cache lookups per cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	RateSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subly_rate_snapshots_total",
			Help: "Rate snapshots published per source tag",
		},
		[]string{"source"},
	)

	RateMissingCodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subly_rate_missing_codes",
			Help: "Number of supported codes filled from the fallback table in the current snapshot",
		},
	)

	IconResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subly_icon_resolutions_total",
			Help: "Icon resolutions per winning provider",
		},
		[]string{"provider", "cached"},
	)

	IconProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subly_icon_probes_total",
			Help: "Icon candidate probes per outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subly_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds per route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// ObserveCache records a cache lookup outcome
func ObserveCache(cache, outcome string) {
	CacheLookupsTotal.WithLabelValues(cache, outcome).Inc()
}

// ObserveProvider records the outcome and duration of a provider call
func ObserveProvider(provider string, err error, seconds float64) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
	ProviderRequestDurationSeconds.WithLabelValues(provider).Observe(seconds)
}
