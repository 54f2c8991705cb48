// SPDX-License-Identifier: MIT

// Package store persists the playback session journal: the latest record
// per session plus every state transition, so operator dashboards can
// show closed and errored sessions after the controllers are gone.
package store

import "context"

// SessionRecord is the persisted journal row for one playback session.
type SessionRecord struct {
	SessionID         string  `json:"sessionId"`
	ManifestURL       string  `json:"manifestUrl"`
	State             string  `json:"state"`
	VariantIndex      int     `json:"variantIndex"` // -1 while no variant is confirmed
	Position          float64 `json:"position"`
	Duration          float64 `json:"duration"` // -1 while unknown
	LastErrorCategory string  `json:"lastErrorCategory,omitempty"`
	LastErrorMessage  string  `json:"lastErrorMessage,omitempty"`
	LastErrorFatal    bool    `json:"lastErrorFatal,omitempty"`
	CorrelationID     string  `json:"correlationId,omitempty"`
	Transitions       int     `json:"transitions"`
	CreatedAtMs       int64   `json:"createdAtMs"`
	UpdatedAtMs       int64   `json:"updatedAtMs"`
	ClosedAtMs        int64   `json:"closedAtMs,omitempty"` // 0 while the session is live
}

// TransitionRecord is one journaled state transition.
type TransitionRecord struct {
	SessionID string `json:"sessionId"`
	Seq       int    `json:"seq"`
	From      string `json:"from"`
	To        string `json:"to"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	AtMs      int64  `json:"atMs"`
}

// Filter narrows ListSessions results.
type Filter struct {
	States []string // empty matches all states
	Limit  int      // 0 means no limit
}

func (f Filter) matches(state string) bool {
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if s == state {
			return true
		}
	}
	return false
}

// StateStore persists session journal rows. GetSession returns (nil, nil)
// when the session is unknown. Implementations must return copies so
// callers can never mutate stored state.
type StateStore interface {
	PutSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	// ListSessions returns matching records ordered by UpdatedAtMs
	// descending (most recently active first).
	ListSessions(ctx context.Context, filter Filter) ([]*SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error

	AppendTransition(ctx context.Context, tr TransitionRecord) error
	// Transitions returns a session's journal ordered by Seq ascending.
	Transitions(ctx context.Context, sessionID string) ([]TransitionRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
