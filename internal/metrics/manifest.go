// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	manifestFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playbackd_manifest_fetch_duration_seconds",
		Help:    "Master manifest fetch latency by outcome",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"}) // outcome=success|error

	manifestCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_manifest_cache_lookups_total",
		Help: "Manifest cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	manifestVariants = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playbackd_manifest_variants",
		Help:    "Variant count per successfully parsed manifest",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})
)

// ObserveManifestFetch records one manifest fetch with its outcome.
func ObserveManifestFetch(outcome string, seconds float64) {
	manifestFetchDuration.WithLabelValues(outcome).Observe(seconds)
}

// IncManifestCacheLookup records a cache hit or miss.
func IncManifestCacheLookup(result string) {
	manifestCacheLookups.WithLabelValues(result).Inc()
}

// ObserveManifestVariants records the variant count of a parsed manifest.
func ObserveManifestVariants(count int) {
	manifestVariants.Observe(float64(count))
}
