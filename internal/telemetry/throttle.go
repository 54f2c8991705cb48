// SPDX-License-Identifier: MIT

package telemetry

import "sync"

// ProgressThrottle suppresses time_update events until the playhead has
// advanced by at least step seconds of media time since the last emitted
// position. The first report of a session only seeds the reference.
// Backward movement (a rewind seek) rewinds the reference without
// emitting, so progress after the jump is measured from the new spot.
type ProgressThrottle struct {
	mu   sync.Mutex
	step float64
	last map[string]float64
}

// NewProgressThrottle builds a throttle with the given minimum playhead
// advance in seconds.
func NewProgressThrottle(step float64) *ProgressThrottle {
	if step <= 0 {
		step = 5.0
	}
	return &ProgressThrottle{
		step: step,
		last: make(map[string]float64),
	}
}

// Offer reports whether a time_update should be emitted for position p
// and advances the reference when it should.
func (t *ProgressThrottle) Offer(sessionID string, p float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ref, seen := t.last[sessionID]
	if !seen {
		t.last[sessionID] = p
		return false
	}
	if p < ref {
		t.last[sessionID] = p
		return false
	}
	if p-ref >= t.step {
		t.last[sessionID] = p
		return true
	}
	return false
}

// Forget drops a session's reference so its state cannot leak after the
// session ends.
func (t *ProgressThrottle) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, sessionID)
}
