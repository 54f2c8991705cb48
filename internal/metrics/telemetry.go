// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	telemetryEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_telemetry_events_total",
		Help: "Telemetry events accepted into the forwarding queue by type",
	}, []string{"type"})

	telemetryThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playbackd_telemetry_throttled_total",
		Help: "time_update events suppressed by the progress throttle",
	})

	telemetryDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_telemetry_dropped_total",
		Help: "Telemetry events dropped by reason",
	}, []string{"reason"}) // reason=queue_full|post_failed|shutdown

	telemetryRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playbackd_telemetry_retries_total",
		Help: "Immediate retries of failed telemetry posts",
	})

	telemetryQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playbackd_telemetry_queue_depth",
		Help: "Pending telemetry events waiting for the forwarder",
	})

	telemetryPostDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playbackd_telemetry_post_duration_seconds",
		Help:    "Latency of telemetry ingestion posts",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"outcome"}) // outcome=accepted|rejected|error
)

// IncTelemetryEmitted records an event accepted into the queue.
func IncTelemetryEmitted(eventType string) {
	telemetryEmitted.WithLabelValues(eventType).Inc()
}

// IncTelemetryThrottled records a suppressed time_update.
func IncTelemetryThrottled() {
	telemetryThrottled.Inc()
}

// IncTelemetryDropped records dropped events with a concrete reason.
func IncTelemetryDropped(reason string, count int) {
	if reason == "" {
		reason = "unknown"
	}
	telemetryDropped.WithLabelValues(reason).Add(float64(count))
}

// IncTelemetryRetry records one immediate retry of a failed post.
func IncTelemetryRetry() {
	telemetryRetries.Inc()
}

// SetTelemetryQueueDepth tracks the forwarder backlog.
func SetTelemetryQueueDepth(depth int) {
	telemetryQueueDepth.Set(float64(depth))
}

// ObserveTelemetryPost records one ingestion post with its outcome.
func ObserveTelemetryPost(outcome string, seconds float64) {
	telemetryPostDuration.WithLabelValues(outcome).Observe(seconds)
}
