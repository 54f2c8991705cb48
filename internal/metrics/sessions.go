// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playbackd_sessions_opened_total",
		Help: "Total number of playback sessions opened",
	})

	sessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_sessions_closed_total",
		Help: "Total number of playback sessions closed by final state",
	}, []string{"final_state"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playbackd_sessions_active",
		Help: "Number of currently open playback sessions",
	})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_session_transitions_total",
		Help: "State machine transitions by from/to state and event",
	}, []string{"from", "to", "event"})

	sessionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_session_rejections_total",
		Help: "Commands rejected by the state machine, by state and event",
	}, []string{"state", "event"})

	sessionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_session_failures_total",
		Help: "Classified playback failures by category and fatality",
	}, []string{"category", "fatal"})

	recoveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_recovery_attempts_total",
		Help: "Automatic recovery attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	variantSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbackd_variant_switches_total",
		Help: "Decoder-confirmed variant switches by origin",
	}, []string{"origin"}) // origin=manual|initial
)

// IncSessionOpened records a new playback session.
func IncSessionOpened() {
	sessionsOpened.Inc()
	sessionsActive.Inc()
}

// IncSessionClosed records a finished session with its final state.
func IncSessionClosed(finalState string) {
	sessionsClosed.WithLabelValues(finalState).Inc()
	sessionsActive.Dec()
}

// IncSessionTransition records an accepted state machine transition.
func IncSessionTransition(from, to, event string) {
	sessionTransitions.WithLabelValues(from, to, event).Inc()
}

// IncSessionRejection records a command refused by the state machine.
func IncSessionRejection(state, event string) {
	sessionRejections.WithLabelValues(state, event).Inc()
}

// IncSessionFailure records a classified failure.
func IncSessionFailure(category string, fatal bool) {
	label := "false"
	if fatal {
		label = "true"
	}
	sessionFailures.WithLabelValues(category, label).Inc()
}

// IncRecoveryAttempt records an automatic retry outcome.
func IncRecoveryAttempt(outcome string) {
	recoveryAttempts.WithLabelValues(outcome).Inc()
}

// IncVariantSwitch records a decoder-confirmed variant switch.
func IncVariantSwitch(origin string) {
	variantSwitches.WithLabelValues(origin).Inc()
}
