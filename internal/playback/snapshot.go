// SPDX-License-Identifier: MIT

package playback

import "github.com/ManuGH/playbackd/internal/manifest"

// Snapshot is the read-only view of one session, safe to hand to API
// handlers and dashboards. Variant indices are -1 while unset; Duration
// is -1 while unknown.
type Snapshot struct {
	SessionID   string `json:"sessionId"`
	ManifestURL string `json:"manifestUrl"`

	State SessionState `json:"state"`

	Position   float64 `json:"positionSeconds"`
	Duration   float64 `json:"durationSeconds"`
	BufferedTo float64 `json:"bufferedEdgeSeconds"`
	Unbounded  bool    `json:"unbounded,omitempty"`

	CurrentVariant   int                `json:"currentVariantIndex"`
	RequestedVariant int                `json:"requestedVariantIndex"`
	Variants         []manifest.Variant `json:"variants,omitempty"`

	LastError *Failure `json:"lastError,omitempty"`

	Autoplay bool `json:"autoplay"`
	Muted    bool `json:"muted"`

	Transitions int   `json:"transitions"`
	CreatedAtMs int64 `json:"createdAtMs"`
	UpdatedAtMs int64 `json:"updatedAtMs"`
	ClosedAtMs  int64 `json:"closedAtMs,omitempty"`
}

// StateChange is published on the session bus for every accepted
// transition. Subscribers receive a full snapshot so they never need to
// query the controller back.
type StateChange struct {
	SessionID string       `json:"sessionId"`
	From      SessionState `json:"from"`
	To        SessionState `json:"to"`
	Event     string       `json:"event"`
	Reason    string       `json:"reason,omitempty"`
	AtMs      int64        `json:"atMs"`
	Snapshot  Snapshot     `json:"snapshot"`
}

// TopicStateChanges is the bus topic carrying StateChange messages.
const TopicStateChanges = "session.state"
