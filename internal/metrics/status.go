// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var statusExports = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "playbackd_status_exports_total",
	Help: "Status file export attempts by outcome",
}, []string{"outcome"}) // outcome=success|failure

// IncStatusExport records one status file export attempt.
func IncStatusExport(outcome string) {
	statusExports.WithLabelValues(outcome).Inc()
}
