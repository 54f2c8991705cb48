// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enginePlaylistFetch = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "playbackd_engine_playlist_fetch_duration_seconds",
	Help:    "Media playlist fetch latency by outcome",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"outcome"}) // outcome=success|error

// ObserveEnginePlaylistFetch records one media playlist fetch by the
// headless engine.
func ObserveEnginePlaylistFetch(outcome string, seconds float64) {
	enginePlaylistFetch.WithLabelValues(outcome).Observe(seconds)
}
