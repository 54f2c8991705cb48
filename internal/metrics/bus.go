// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusDroppedTotal counts in-memory bus drops by topic and reason.
// Exported so bus tests can assert drop accounting.
var BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "playbackd_bus_dropped_total",
	Help: "In-memory bus message drops by topic and reason",
}, []string{"topic", "reason"})

// IncBusDrop records a dropped bus message for the given topic.
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
