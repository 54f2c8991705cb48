// SPDX-License-Identifier: MIT
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	err := gauge.Write(metric)
	require.NoError(t, err)
	return metric.GetGauge().GetValue()
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	err := counter.Write(metric)
	require.NoError(t, err)
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return getCounterValue(t, counterVec.WithLabelValues(labels...))
}

func TestSessionLifecycleCounters(t *testing.T) {
	openedBefore := getCounterValue(t, sessionsOpened)
	activeBefore := getGaugeValue(t, sessionsActive)

	IncSessionOpened()
	assert.Equal(t, openedBefore+1, getCounterValue(t, sessionsOpened))
	assert.Equal(t, activeBefore+1, getGaugeValue(t, sessionsActive))

	closedBefore := getCounterVecValue(t, sessionsClosed, "CLOSED")
	IncSessionClosed("CLOSED")
	assert.Equal(t, closedBefore+1, getCounterVecValue(t, sessionsClosed, "CLOSED"))
	assert.Equal(t, activeBefore, getGaugeValue(t, sessionsActive))
}

func TestSessionTransitionLabels(t *testing.T) {
	before := getCounterVecValue(t, sessionTransitions, "LOADING", "PLAYING", "manifest_parsed")
	IncSessionTransition("LOADING", "PLAYING", "manifest_parsed")
	assert.Equal(t, before+1, getCounterVecValue(t, sessionTransitions, "LOADING", "PLAYING", "manifest_parsed"))
}

func TestSessionFailureFatalLabel(t *testing.T) {
	fatalBefore := getCounterVecValue(t, sessionFailures, "media", "true")
	nonFatalBefore := getCounterVecValue(t, sessionFailures, "network", "false")

	IncSessionFailure("media", true)
	IncSessionFailure("network", false)

	assert.Equal(t, fatalBefore+1, getCounterVecValue(t, sessionFailures, "media", "true"))
	assert.Equal(t, nonFatalBefore+1, getCounterVecValue(t, sessionFailures, "network", "false"))
}

func TestTelemetryDropCounting(t *testing.T) {
	before := getCounterVecValue(t, telemetryDropped, "queue_full")
	IncTelemetryDropped("queue_full", 3)
	assert.Equal(t, before+3, getCounterVecValue(t, telemetryDropped, "queue_full"))

	unknownBefore := getCounterVecValue(t, telemetryDropped, "unknown")
	IncTelemetryDropped("", 1)
	assert.Equal(t, unknownBefore+1, getCounterVecValue(t, telemetryDropped, "unknown"))
}

func TestTelemetryQueueDepthGauge(t *testing.T) {
	SetTelemetryQueueDepth(17)
	assert.Equal(t, 17.0, getGaugeValue(t, telemetryQueueDepth))
	SetTelemetryQueueDepth(0)
	assert.Equal(t, 0.0, getGaugeValue(t, telemetryQueueDepth))
}

func TestManifestCacheLookup(t *testing.T) {
	hits := getCounterVecValue(t, manifestCacheLookups, "hit")
	IncManifestCacheLookup("hit")
	assert.Equal(t, hits+1, getCounterVecValue(t, manifestCacheLookups, "hit"))
}

func TestBusDropReasonDefaults(t *testing.T) {
	before := getCounterVecValue(t, BusDroppedTotal, "unknown", "unknown")
	IncBusDropReason("", "")
	assert.Equal(t, before+1, getCounterVecValue(t, BusDroppedTotal, "unknown", "unknown"))

	fullBefore := getCounterVecValue(t, BusDroppedTotal, "session.state", "full")
	IncBusDrop("session.state")
	assert.Equal(t, fullBefore+1, getCounterVecValue(t, BusDroppedTotal, "session.state", "full"))
}
