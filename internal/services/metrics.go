// Prometheus instrumentation for the admission and query-cache paths.
//
// Label cardinality is kept bounded: cache lookups are labeled by result
// kind (listing/detail) and outcome (hit/miss/bypass), admissions by
// outcome (allowed/missing/invalid/rate_limited). All collectors are safe
// for concurrent use.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_cache_lookups_total",
			Help: "Query-cache lookups by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_admissions_total",
			Help: "API-key admission decisions by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, admissions)
}
