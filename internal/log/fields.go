// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldTimerID       = "timer_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldManifestURL  = "manifest_url"
	FieldVariantIndex = "variant_index"
	FieldPosition     = "position_seconds"
	FieldDuration     = "duration_seconds"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldReason   = "reason"

	// Failure fields
	FieldCategory = "category"
	FieldFatal    = "fatal"
)
