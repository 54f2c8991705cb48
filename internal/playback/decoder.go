// SPDX-License-Identifier: MIT

package playback

// DecoderEventKind tags events on the decoder channel.
type DecoderEventKind int

const (
	// DecoderManifestParsed signals the engine finished loading the
	// source and knows the stream metadata.
	DecoderManifestParsed DecoderEventKind = iota
	// DecoderLevelSwitched confirms the engine is now decoding the
	// given variant level.
	DecoderLevelSwitched
	// DecoderFatalError reports an unrecoverable engine failure.
	DecoderFatalError
	// DecoderBufferProgress is the periodic playhead/buffer report.
	DecoderBufferProgress
)

// DecoderErrKind attributes a fatal engine error to a failure path.
type DecoderErrKind int

const (
	ErrKindOther DecoderErrKind = iota
	ErrKindNetwork
	ErrKindMedia
)

// DecoderEvent is one notification from the engine. Fields are populated
// per Kind: Level for level switches, Err/ErrKind for fatal errors, and
// the position group for manifest-parsed and buffer-progress reports.
type DecoderEvent struct {
	Kind DecoderEventKind

	Level int

	Err     error
	ErrKind DecoderErrKind

	Position   float64 // current playhead in seconds
	Duration   float64 // total duration in seconds, < 0 while unknown
	BufferedTo float64 // farthest contiguous buffered position
	Unbounded  bool    // live stream without a fixed duration
	Stalled    bool    // buffered edge caught up to the playhead
}

// Decoder is the engine port. One decoder instance serves one load
// attempt; recovery and manual retry always destroy the old instance and
// attach a fresh one. Implementations deliver events on a dedicated
// channel that is closed by Destroy.
type Decoder interface {
	// IsSupported reports whether the runtime can decode segmented
	// media at all. Checked once per open, before any network activity.
	IsSupported() bool
	// Attach binds the decoder to a media sink.
	Attach(sink string) error
	// LoadSource starts loading the given manifest URL.
	LoadSource(url string) error
	// SetLevel requests a switch to the given variant index. The switch
	// is confirmed asynchronously via DecoderLevelSwitched.
	SetLevel(index int) error
	// Seek repositions the playhead.
	Seek(position float64) error
	// Destroy releases all engine resources and closes the event
	// channel. Idempotent.
	Destroy() error
	// Events returns the engine notification channel.
	Events() <-chan DecoderEvent
}

// DecoderFactory builds a fresh decoder for one load attempt.
type DecoderFactory func(sessionID string) Decoder
