// SPDX-License-Identifier: MIT

package playback

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From   SessionState
	To     SessionState
	Event  EventKind
	Reason string
}

// transitionsTable is the single source of truth for every static edge.
// Three events have a context-dependent target state and are resolved by
// the dispatch helpers below instead: EvManifestParsed (autoplay),
// EvBufferRecovered (resume intent) and EvFailure (fatality and retry
// budget).
var transitionsTable = []Transition{
	// Open path
	{From: StateUninitialized, To: StateProbing, Event: EvOpenRequested},
	{From: StateProbing, To: StateLoading, Event: EvCapabilityConfirmed},

	// Play/pause. The BUFFERING self-edges record the resume intent
	// without leaving the stall: the session returns to the requested
	// state once the buffer refills.
	{From: StatePaused, To: StatePlaying, Event: EvPlayRequested},
	{From: StatePlaying, To: StatePaused, Event: EvPauseRequested},
	{From: StateBuffering, To: StateBuffering, Event: EvPlayRequested, Reason: "resume_playing"},
	{From: StateBuffering, To: StateBuffering, Event: EvPauseRequested, Reason: "resume_paused"},

	// Stall path
	{From: StatePlaying, To: StateBuffering, Event: EvStalled},
	{From: StatePaused, To: StateBuffering, Event: EvStalled},

	// Recovery path
	{From: StateRecovering, To: StateLoading, Event: EvRetryTimerFired},
	{From: StateErrored, To: StateProbing, Event: EvRetryRequested, Reason: "manual_retry"},

	// Close is legal from every state, including ERRORED. A second close
	// on CLOSED is a plain no-op, not an edge.
	{From: StateUninitialized, To: StateClosed, Event: EvCloseRequested},
	{From: StateProbing, To: StateClosed, Event: EvCloseRequested},
	{From: StateLoading, To: StateClosed, Event: EvCloseRequested},
	{From: StatePlaying, To: StateClosed, Event: EvCloseRequested},
	{From: StatePaused, To: StateClosed, Event: EvCloseRequested},
	{From: StateBuffering, To: StateClosed, Event: EvCloseRequested},
	{From: StateRecovering, To: StateClosed, Event: EvCloseRequested},
	{From: StateErrored, To: StateClosed, Event: EvCloseRequested},
}

// TransitionFor returns the static transition for a state+event pair.
func TransitionFor(from SessionState, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// startedOutcome resolves the target state after a successful manifest
// load: Playing when the session was opened with autoplay, Paused
// otherwise. The same rule applies to recovery re-loads.
func startedOutcome(autoplay bool) SessionState {
	if autoplay {
		return StatePlaying
	}
	return StatePaused
}

// resumeOutcome resolves the target state when a stall clears. The intent
// defaults to Playing for sessions that stalled mid-playback.
func resumeOutcome(intent SessionState) SessionState {
	if intent == StatePaused {
		return StatePaused
	}
	return StatePlaying
}

// failureOutcome resolves the target state for a classified failure.
// Non-fatal failures consume the single automatic retry when one is
// still available; everything else is terminal.
func failureOutcome(f Failure, retryAvailable bool) SessionState {
	if f.Fatal || !retryAvailable {
		return StateErrored
	}
	return StateRecovering
}
