// SPDX-License-Identifier: MIT

package playback

import "errors"

// FailureCategory is the coarse failure taxonomy attached to sessions
// and telemetry error events.
type FailureCategory string

const (
	CategoryNetwork     FailureCategory = "Network"
	CategoryMedia       FailureCategory = "Media"
	CategoryUnsupported FailureCategory = "Unsupported"
	CategoryUnknown     FailureCategory = "Unknown"
)

// SignalSource names the path a raw failure signal arrived on. The
// classifier never inspects error strings; the source is the authority.
type SignalSource int

const (
	// SourceTransport covers manifest acquisition and parsing plus
	// segment fetch faults reported by the decoder.
	SourceTransport SignalSource = iota
	// SourceDecode covers demux/decode faults inside the engine.
	SourceDecode
	// SourceCapability is the probe result at open time.
	SourceCapability
	// SourceInternal is everything else.
	SourceInternal
)

// Failure is a classified failure record. Fatal is the classifier's
// baseline verdict; the controller upgrades a non-fatal failure to fatal
// when the recovery budget is exhausted, before the record is attached to
// the session.
type Failure struct {
	Category FailureCategory `json:"category"`
	Fatal    bool            `json:"fatal"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Cause    error           `json:"-"`
}

// Error implements the error interface so failures wrap cleanly.
func (f Failure) Error() string {
	if f.Cause != nil {
		return string(f.Category) + ": " + f.Cause.Error()
	}
	return string(f.Category) + ": " + f.Message
}

// Unwrap exposes the raw cause for errors.Is/As at boundaries.
func (f Failure) Unwrap() error { return f.Cause }

// Classify maps a raw failure signal to the taxonomy. It is pure and
// deterministic: transport faults are Network and recoverable once, the
// decode path and a missing capability are fatal, and anything
// unrecognized is conservatively fatal Unknown.
func Classify(src SignalSource, code string, err error) Failure {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	switch src {
	case SourceTransport:
		return Failure{Category: CategoryNetwork, Fatal: false, Code: code, Message: msg, Cause: err}
	case SourceDecode:
		return Failure{Category: CategoryMedia, Fatal: true, Code: code, Message: msg, Cause: err}
	case SourceCapability:
		return Failure{Category: CategoryUnsupported, Fatal: true, Code: code, Message: msg, Cause: err}
	default:
		return Failure{Category: CategoryUnknown, Fatal: true, Code: code, Message: msg, Cause: err}
	}
}

// classifyDecoderError maps a decoder fatal event to a signal source
// using the engine's own path attribution.
func classifyDecoderError(kind DecoderErrKind, err error) Failure {
	switch kind {
	case ErrKindNetwork:
		return Classify(SourceTransport, "segment_network", err)
	case ErrKindMedia:
		return Classify(SourceDecode, "decode", err)
	default:
		return Classify(SourceInternal, "internal", err)
	}
}

// ErrSessionClosed is returned by commands against a closed session.
var ErrSessionClosed = errors.New("session closed")
