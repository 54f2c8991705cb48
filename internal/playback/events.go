// SPDX-License-Identifier: MIT

package playback

// EventKind is a domain event driving the session state machine.
type EventKind int

const (
	EvNone EventKind = iota
	EvOpenRequested
	EvCapabilityConfirmed
	EvManifestParsed
	EvPlayRequested
	EvPauseRequested
	EvStalled
	EvBufferRecovered
	EvFailure
	EvRetryTimerFired
	EvRetryRequested
	EvCloseRequested
)

// String returns the stable wire name used in the journal and metrics.
func (k EventKind) String() string {
	switch k {
	case EvOpenRequested:
		return "open"
	case EvCapabilityConfirmed:
		return "capability_confirmed"
	case EvManifestParsed:
		return "manifest_parsed"
	case EvPlayRequested:
		return "play"
	case EvPauseRequested:
		return "pause"
	case EvStalled:
		return "stalled"
	case EvBufferRecovered:
		return "buffer_recovered"
	case EvFailure:
		return "failure"
	case EvRetryTimerFired:
		return "retry_timer"
	case EvRetryRequested:
		return "retry"
	case EvCloseRequested:
		return "close"
	default:
		return "none"
	}
}

// Event carries optional domain metadata for a transition.
type Event struct {
	Kind    EventKind
	Failure *Failure // set for EvFailure
}

// Decision records whether a command or event was accepted by the state
// machine and, when it was not, why.
type Decision struct {
	Allowed bool
	Reason  string
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func rejected(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
