// SPDX-License-Identifier: MIT

// Package playback owns the adaptive playback session state machine: one
// controller per session drives manifest loading, variant switching,
// failure classification and bounded recovery, and reports every accepted
// transition to the journal, the session bus and the telemetry emitter.
package playback

// SessionState is the lifecycle state of one playback session. The wire
// form is uppercase and stable; dashboards and the journal depend on it.
type SessionState string

const (
	StateUninitialized SessionState = "UNINITIALIZED"
	StateProbing       SessionState = "PROBING"
	StateLoading       SessionState = "LOADING"
	StatePlaying       SessionState = "PLAYING"
	StatePaused        SessionState = "PAUSED"
	StateBuffering     SessionState = "BUFFERING"
	StateRecovering    SessionState = "RECOVERING"
	StateErrored       SessionState = "ERRORED"
	StateClosed        SessionState = "CLOSED"
)

// IsTerminal reports whether no further transitions may leave the state.
// ERRORED is terminal for playback but still accepts Retry and Close;
// CLOSED accepts nothing.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateErrored, StateClosed:
		return true
	}
	return false
}

// acceptsPlaybackCommands reports whether play/pause/seek/variant commands
// are legal in this state.
func (s SessionState) acceptsPlaybackCommands() bool {
	switch s {
	case StatePlaying, StatePaused, StateBuffering:
		return true
	}
	return false
}
