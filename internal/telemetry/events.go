// SPDX-License-Identifier: MIT

package telemetry

// EventType names one kind of playback occurrence on the wire.
type EventType string

const (
	EventPlay          EventType = "play"
	EventPause         EventType = "pause"
	EventTimeUpdate    EventType = "time_update"
	EventQualitySwitch EventType = "quality_switch"
	EventError         EventType = "error"

	// Out-of-band product signals forwarded through the same pipeline.
	EventQRScan              EventType = "qr_scan"
	EventCompilationStart    EventType = "compilation_start"
	EventCompilationComplete EventType = "compilation_complete"
)

// ParseSignalType maps an API signal name to its event type. Only the
// out-of-band product signals are accepted here; playback events are
// produced by the controller, never injected externally.
func ParseSignalType(s string) (EventType, bool) {
	switch EventType(s) {
	case EventQRScan, EventCompilationStart, EventCompilationComplete:
		return EventType(s), true
	default:
		return "", false
	}
}

// Event is one telemetry occurrence bound for the ingestion endpoint.
type Event struct {
	SessionID string            `json:"sessionId"`
	Type      EventType         `json:"type"`
	AtUnixMs  int64             `json:"at"`
	Position  float64           `json:"position"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}
