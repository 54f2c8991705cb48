// SPDX-License-Identifier: MIT

package playback

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/playbackd/internal/bus"
	"github.com/ManuGH/playbackd/internal/log"
	"github.com/ManuGH/playbackd/internal/manifest"
	"github.com/ManuGH/playbackd/internal/metrics"
	"github.com/ManuGH/playbackd/internal/playback/store"
	"github.com/ManuGH/playbackd/internal/telemetry"
)

// OpenOptions configures one open attempt.
type OpenOptions struct {
	Autoplay         bool
	Muted            bool
	PreferredVariant *int
}

// ManifestFetcher is the manifest collaborator port, implemented by
// manifest.Fetcher.
type ManifestFetcher interface {
	Fetch(ctx context.Context, url string) (*manifest.Table, error)
}

// Telemetry receives playback occurrences, implemented by the telemetry
// emitter. Implementations must never block the caller.
type Telemetry interface {
	Record(ev telemetry.Event)
	RecordProgress(sessionID string, position float64)
	EndSession(sessionID string)
}

// NopTelemetry discards everything; used when no emitter is configured.
type NopTelemetry struct{}

func (NopTelemetry) Record(telemetry.Event)          {}
func (NopTelemetry) RecordProgress(string, float64)  {}
func (NopTelemetry) EndSession(string)               {}

// ControllerConfig bounds the per-session timers.
type ControllerConfig struct {
	// RecoveryDelay is the pause before the single automatic retry.
	RecoveryDelay time.Duration
	// StallTimeout declares a playing session stalled when no progress
	// report arrives for this long.
	StallTimeout time.Duration
}

// Deps are the collaborator ports of one controller. Decoders and
// Manifests are required; the rest degrade to no-ops when absent.
type Deps struct {
	Decoders  DecoderFactory
	Manifests ManifestFetcher
	Telemetry Telemetry
	Journal   store.StateStore
	Bus       bus.Bus
	Clock     Clock
	Logger    zerolog.Logger
}

type cmdKind int

const (
	cmdOpen cmdKind = iota
	cmdPlay
	cmdPause
	cmdSeek
	cmdSetVariant
	cmdRetry
	cmdSignal
	cmdClose
)

type command struct {
	kind cmdKind

	url           string
	opts          OpenOptions
	correlationID string
	position      float64
	index         int
	signal        telemetry.EventType
	attrs         map[string]string

	reply chan Decision
}

type loadResult struct {
	gen   int
	table *manifest.Table
	err   error
}

// Controller owns one playback session. All session state is mutated by
// the single run goroutine; commands, decoder events and timer fires are
// serialized through one select, so transition handlers always run to
// completion before the next event is observed.
type Controller struct {
	id   string
	deps Deps
	cfg  ControllerConfig

	cmds  chan command
	loads chan loadResult
	done  chan struct{}

	mu   sync.RWMutex
	snap Snapshot

	// Loop-owned fields below; touched only by run().
	state         SessionState
	url           string
	opts          OpenOptions
	correlationID string

	table      *manifest.Table
	current    int // decoder-confirmed variant index, -1 while unset
	requested  int // pending requested variant index, -1 while none
	position   float64
	duration   float64 // -1 while unknown
	bufferedTo float64
	unbounded  bool

	resumeIntent SessionState // state to return to when a stall clears
	lastError    *Failure

	retryAvailable bool // one automatic retry per failure occurrence
	recovering     bool // a recovery attempt is in flight

	decoder    Decoder
	gen        int // load generation; stale results are discarded
	loadCancel context.CancelFunc
	retryTimer Timer
	stallTimer Timer

	transitions int
	createdAt   time.Time
	updatedAt   time.Time
	closedAt    time.Time

	logger zerolog.Logger
}

// New builds a controller in UNINITIALIZED state and starts its run
// loop. The caller must eventually Close it.
func New(id string, cfg ControllerConfig, deps Deps) *Controller {
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = NopTelemetry{}
	}
	if cfg.RecoveryDelay <= 0 {
		cfg.RecoveryDelay = 2 * time.Second
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 8 * time.Second
	}

	now := deps.Clock.Now()
	c := &Controller{
		id:        id,
		deps:      deps,
		cfg:       cfg,
		cmds:      make(chan command),
		loads:     make(chan loadResult, 1),
		done:      make(chan struct{}),
		state:     StateUninitialized,
		current:   -1,
		requested: -1,
		duration:  -1,
		createdAt: now,
		updatedAt: now,
		logger:    deps.Logger.With().Str("component", "playback").Str(log.FieldSessionID, id).Logger(),
	}
	c.publishSnapshot()
	go c.run()
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Done is closed when the session reached CLOSED and released all
// resources.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Snapshot returns the current read-only session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Open starts the session against the given manifest URL. Legal exactly
// once, from UNINITIALIZED; a controller is never reopened. A missing
// decoding capability is reported synchronously as a rejected decision
// with the session left ERRORED.
func (c *Controller) Open(ctx context.Context, manifestURL string, opts OpenOptions) Decision {
	return c.send(command{
		kind:          cmdOpen,
		url:           manifestURL,
		opts:          opts,
		correlationID: log.CorrelationIDFromContext(ctx),
	})
}

// Play resumes playback. Legal from PAUSED and BUFFERING.
func (c *Controller) Play() Decision { return c.send(command{kind: cmdPlay}) }

// Pause pauses playback. Legal from PLAYING and BUFFERING.
func (c *Controller) Pause() Decision { return c.send(command{kind: cmdPause}) }

// Seek clamps the target position to [0, duration] and repositions the
// playhead. Rejected while the duration is unknown or unbounded.
func (c *Controller) Seek(positionSeconds float64) Decision {
	return c.send(command{kind: cmdSeek, position: positionSeconds})
}

// SetVariant requests a switch to the given variant index. The confirmed
// index changes only when the decoder acknowledges the switch.
func (c *Controller) SetVariant(index int) Decision {
	return c.send(command{kind: cmdSetVariant, index: index})
}

// Retry re-runs the full open sequence from ERRORED with a reset
// recovery budget and a fresh decoder.
func (c *Controller) Retry() Decision { return c.send(command{kind: cmdRetry}) }

// Signal forwards an out-of-band product event (qr_scan,
// compilation_start, compilation_complete) to telemetry exactly once.
func (c *Controller) Signal(eventType telemetry.EventType, attrs map[string]string) Decision {
	return c.send(command{kind: cmdSignal, signal: eventType, attrs: attrs})
}

// Close releases the session. Idempotent and legal from every state; it
// cancels in-flight loads and pending timers, destroys the decoder and
// suppresses any callback arriving afterwards.
func (c *Controller) Close() error {
	c.send(command{kind: cmdClose})
	<-c.done
	return nil
}

func (c *Controller) send(cmd command) Decision {
	cmd.reply = make(chan Decision, 1)
	select {
	case c.cmds <- cmd:
	case <-c.done:
		if cmd.kind == cmdClose {
			return allowed()
		}
		return rejected("session closed")
	}
	select {
	case d := <-cmd.reply:
		return d
	case <-c.done:
		if cmd.kind == cmdClose {
			return allowed()
		}
		return rejected("session closed")
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		var decoderCh <-chan DecoderEvent
		if c.decoder != nil {
			decoderCh = c.decoder.Events()
		}
		var retryCh, stallCh <-chan time.Time
		if c.retryTimer != nil {
			retryCh = c.retryTimer.C()
		}
		if c.stallTimer != nil {
			stallCh = c.stallTimer.C()
		}

		select {
		case cmd := <-c.cmds:
			c.handleCommand(cmd)
		case ev, ok := <-decoderCh:
			if !ok {
				c.decoder = nil
				continue
			}
			c.handleDecoderEvent(ev)
		case res := <-c.loads:
			c.handleLoadResult(res)
		case <-retryCh:
			c.retryTimer = nil
			c.handleRetryTimer()
		case <-stallCh:
			c.stallTimer = nil
			c.handleStallTimeout()
		}

		if c.state == StateClosed {
			return
		}
	}
}

func (c *Controller) handleCommand(cmd command) {
	var d Decision
	switch cmd.kind {
	case cmdOpen:
		d = c.handleOpen(cmd)
	case cmdPlay:
		d = c.handlePlayPause(EvPlayRequested, telemetry.EventPlay)
	case cmdPause:
		d = c.handlePlayPause(EvPauseRequested, telemetry.EventPause)
	case cmdSeek:
		d = c.handleSeek(cmd.position)
	case cmdSetVariant:
		d = c.handleSetVariant(cmd.index)
	case cmdRetry:
		d = c.handleRetry()
	case cmdSignal:
		d = c.handleSignal(cmd.signal, cmd.attrs)
	case cmdClose:
		d = c.handleClose()
	default:
		d = rejected("unknown command")
	}
	cmd.reply <- d
}

func (c *Controller) handleOpen(cmd command) Decision {
	tr, ok := TransitionFor(c.state, EvOpenRequested)
	if !ok {
		c.reject(EvOpenRequested)
		return rejected("session already opened")
	}
	c.url = cmd.url
	c.opts = cmd.opts
	c.correlationID = cmd.correlationID
	c.apply(tr)
	return c.probe()
}

// probe runs the capability check and attaches a fresh decoder. Shared
// by open and manual retry; the capability probe happens before any
// network activity.
func (c *Controller) probe() Decision {
	dec := c.deps.Decoders(c.id)
	if dec == nil || !dec.IsSupported() {
		if dec != nil {
			_ = dec.Destroy()
		}
		f := Classify(SourceCapability, "capability_missing", errors.New("runtime offers no segmented-media decoding"))
		c.fail(f)
		return rejected("unsupported runtime")
	}
	if err := dec.Attach(c.id); err != nil {
		_ = dec.Destroy()
		c.fail(Classify(SourceInternal, "decoder_attach", err))
		return rejected("decoder attach failed")
	}
	c.decoder = dec

	tr, ok := TransitionFor(c.state, EvCapabilityConfirmed)
	if !ok {
		// Unreachable while the table covers PROBING.
		c.reject(EvCapabilityConfirmed)
		return rejected("illegal probe state")
	}
	c.apply(tr)
	c.beginLoad()
	return allowed()
}

// beginLoad starts the asynchronous manifest fetch for the current
// generation. Stale results from a previous generation are discarded by
// handleLoadResult.
func (c *Controller) beginLoad() {
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.loadCancel = cancel

	go func() {
		table, err := c.deps.Manifests.Fetch(ctx, c.url)
		select {
		case c.loads <- loadResult{gen: gen, table: table, err: err}:
		case <-c.done:
		}
	}()
}

func (c *Controller) handleLoadResult(res loadResult) {
	if res.gen != c.gen || c.state != StateLoading {
		c.logger.Debug().Str("event", "session.load_stale").Int("gen", res.gen).Msg("discarding stale load result")
		return
	}
	c.loadCancel = nil

	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			return
		}
		code := "manifest_fetch"
		if errors.Is(res.err, manifest.ErrNoVariants) {
			code = "manifest_parse"
		}
		c.fail(Classify(SourceTransport, code, res.err))
		return
	}

	c.table = res.table
	if err := c.decoder.LoadSource(c.url); err != nil {
		c.fail(Classify(SourceTransport, "source_load", err))
		return
	}
	// Stay in LOADING until the decoder reports manifestParsed.
}

func (c *Controller) handleDecoderEvent(ev DecoderEvent) {
	switch ev.Kind {
	case DecoderManifestParsed:
		c.handleManifestParsed(ev)
	case DecoderLevelSwitched:
		c.handleLevelSwitched(ev.Level)
	case DecoderFatalError:
		c.fail(classifyDecoderError(ev.ErrKind, ev.Err))
	case DecoderBufferProgress:
		c.handleProgress(ev)
	}
}

func (c *Controller) handleManifestParsed(ev DecoderEvent) {
	if c.state != StateLoading {
		c.logger.Debug().Str("event", "session.manifest_stale").Str(log.FieldOldState, string(c.state)).Msg("discarding manifest-parsed outside LOADING")
		return
	}

	c.duration = ev.Duration
	c.unbounded = ev.Unbounded
	if c.duration < 0 && !c.unbounded {
		// No fixed duration declared yet: treat as unbounded until the
		// engine learns better, so the playable states stay legal.
		c.unbounded = true
	}

	if c.opts.PreferredVariant != nil && c.table != nil {
		if idx := c.table.ClampIndex(*c.opts.PreferredVariant); idx >= 0 {
			if err := c.decoder.SetLevel(idx); err != nil {
				c.logger.Warn().Err(err).Str("event", "session.preferred_variant_failed").Int(log.FieldVariantIndex, idx).Msg("preferred variant not applied")
			} else {
				c.requested = idx
			}
		}
	}

	wasRecovering := c.recovering
	c.recovering = false
	c.retryAvailable = true
	if wasRecovering {
		metrics.IncRecoveryAttempt("success")
	}

	to := startedOutcome(c.opts.Autoplay)
	c.apply(Transition{From: c.state, To: to, Event: EvManifestParsed})
	if to == StatePlaying {
		c.resumeIntent = StatePlaying
		c.armStallTimer()
		c.emit(telemetry.EventPlay, nil)
	} else {
		c.resumeIntent = StatePaused
	}
}

func (c *Controller) handleLevelSwitched(level int) {
	prev := c.current
	c.current = level
	if c.requested == level {
		c.requested = -1
	}

	origin := "manual"
	if prev < 0 {
		origin = "initial"
	}
	metrics.IncVariantSwitch(origin)

	if prev >= 0 && prev != level {
		c.emit(telemetry.EventQualitySwitch, map[string]string{
			"from": strconv.Itoa(prev),
			"to":   strconv.Itoa(level),
		})
	}

	c.logger.Info().
		Str("event", "session.level_switched").
		Int(log.FieldVariantIndex, level).
		Str("origin", origin).
		Msg("variant switch confirmed")
	c.publishSnapshot()
}

func (c *Controller) handleProgress(ev DecoderEvent) {
	c.position = ev.Position
	c.bufferedTo = ev.BufferedTo
	if ev.Duration >= 0 {
		c.duration = ev.Duration
		c.unbounded = ev.Unbounded
	}

	switch {
	case ev.Stalled && (c.state == StatePlaying || c.state == StatePaused):
		c.resumeIntent = c.state
		if tr, ok := TransitionFor(c.state, EvStalled); ok {
			c.stopStallTimer()
			c.apply(tr)
		}
	case !ev.Stalled && c.state == StateBuffering:
		to := resumeOutcome(c.resumeIntent)
		c.apply(Transition{From: c.state, To: to, Event: EvBufferRecovered})
		if to == StatePlaying {
			c.armStallTimer()
		}
	case c.state == StatePlaying:
		c.deps.Telemetry.RecordProgress(c.id, c.position)
		c.armStallTimer()
		c.publishSnapshot()
	default:
		c.publishSnapshot()
	}
}

func (c *Controller) handlePlayPause(ev EventKind, t telemetry.EventType) Decision {
	tr, ok := TransitionFor(c.state, ev)
	if !ok {
		c.reject(ev)
		return rejected("not allowed in state " + string(c.state))
	}
	if c.state == StateBuffering {
		// Self-edge: remember where to resume once the buffer refills.
		if ev == EvPlayRequested {
			c.resumeIntent = StatePlaying
		} else {
			c.resumeIntent = StatePaused
		}
	}
	c.apply(tr)
	if c.state == StatePlaying {
		c.armStallTimer()
	} else if c.state == StatePaused {
		c.stopStallTimer()
	}
	c.emit(t, nil)
	return allowed()
}

func (c *Controller) handleSeek(target float64) Decision {
	if !c.state.acceptsPlaybackCommands() {
		metrics.IncSessionRejection(string(c.state), "seek")
		return rejected("not allowed in state " + string(c.state))
	}
	if c.duration < 0 || c.unbounded {
		c.logger.Warn().
			Str("event", "session.seek_unbounded").
			Float64(log.FieldPosition, target).
			Msg("seek ignored: duration unknown or unbounded")
		return rejected("duration unknown")
	}

	clamped := target
	if clamped < 0 {
		clamped = 0
	}
	if clamped > c.duration {
		clamped = c.duration
	}
	if err := c.decoder.Seek(clamped); err != nil {
		c.logger.Warn().Err(err).Str("event", "session.seek_failed").Msg("decoder rejected seek")
		return rejected("seek failed")
	}
	c.position = clamped
	c.updatedAt = c.deps.Clock.Now()
	c.publishSnapshot()
	c.journal()
	return allowed()
}

func (c *Controller) handleSetVariant(index int) Decision {
	if !c.state.acceptsPlaybackCommands() {
		metrics.IncSessionRejection(string(c.state), "set_variant")
		return rejected("not allowed in state " + string(c.state))
	}
	if _, ok := c.table.At(index); !ok {
		metrics.IncSessionRejection(string(c.state), "set_variant")
		return rejected("variant index out of range")
	}
	if index == c.current {
		return allowed()
	}
	if err := c.decoder.SetLevel(index); err != nil {
		c.logger.Warn().Err(err).Str("event", "session.set_variant_failed").Int(log.FieldVariantIndex, index).Msg("decoder rejected variant switch")
		return rejected("variant switch failed")
	}
	c.requested = index
	c.publishSnapshot()
	return allowed()
}

func (c *Controller) handleRetry() Decision {
	tr, ok := TransitionFor(c.state, EvRetryRequested)
	if !ok {
		c.reject(EvRetryRequested)
		return rejected("retry only allowed from ERRORED")
	}
	c.lastError = nil
	c.retryAvailable = true
	c.recovering = false
	c.resetMediaState()
	c.apply(tr)
	return c.probe()
}

func (c *Controller) handleSignal(t telemetry.EventType, attrs map[string]string) Decision {
	c.emit(t, attrs)
	return allowed()
}

func (c *Controller) handleClose() Decision {
	tr, ok := TransitionFor(c.state, EvCloseRequested)
	if !ok {
		return allowed() // already closed
	}
	finalState := c.state
	c.releaseResources()
	c.apply(tr)
	c.deps.Telemetry.EndSession(c.id)
	metrics.IncSessionClosed(string(finalState))
	c.logger.Info().
		Str("event", "session.closed").
		Str("final_state", string(finalState)).
		Msg("session closed")
	return allowed()
}

func (c *Controller) handleRetryTimer() {
	if c.state != StateRecovering {
		return
	}
	tr, _ := TransitionFor(StateRecovering, EvRetryTimerFired)
	c.apply(tr)

	dec := c.deps.Decoders(c.id)
	if dec == nil {
		c.fail(Classify(SourceInternal, "decoder_attach", errors.New("decoder factory returned nil")))
		return
	}
	if err := dec.Attach(c.id); err != nil {
		_ = dec.Destroy()
		c.fail(Classify(SourceInternal, "decoder_attach", err))
		return
	}
	c.decoder = dec
	c.beginLoad()
}

func (c *Controller) handleStallTimeout() {
	if c.state != StatePlaying {
		return
	}
	c.resumeIntent = StatePlaying
	tr, _ := TransitionFor(StatePlaying, EvStalled)
	tr.Reason = "progress_timeout"
	c.apply(tr)
	c.logger.Warn().
		Str("event", "session.progress_timeout").
		Dur("stall_timeout", c.cfg.StallTimeout).
		Msg("no progress report, treating session as buffering")
}

// fail classifies cleanup and transition for one failure occurrence. The
// classifier's verdict is upgraded to fatal when no retry budget
// remains, so the attached record always reflects the final outcome.
func (c *Controller) fail(f Failure) {
	if !f.Fatal && !c.retryAvailable {
		f.Fatal = true
	}
	to := failureOutcome(f, c.retryAvailable)
	c.lastError = &f

	metrics.IncSessionFailure(string(f.Category), f.Fatal)
	c.logger.Error().
		Err(f.Cause).
		Str("event", "session.failure").
		Str(log.FieldCategory, string(f.Category)).
		Str("code", f.Code).
		Bool(log.FieldFatal, f.Fatal).
		Str(log.FieldNewState, string(to)).
		Msg("playback failure")

	c.releaseResources()

	wasRecovering := c.recovering
	c.apply(Transition{From: c.state, To: to, Event: EvFailure, Reason: f.Code})
	c.emit(telemetry.EventError, map[string]string{
		"category": string(f.Category),
		"code":     f.Code,
		"fatal":    strconv.FormatBool(f.Fatal),
		"message":  f.Message,
	})

	switch to {
	case StateRecovering:
		c.retryAvailable = false
		c.recovering = true
		c.retryTimer = c.deps.Clock.NewTimer(c.cfg.RecoveryDelay)
	case StateErrored:
		if wasRecovering {
			metrics.IncRecoveryAttempt("failure")
		}
		c.recovering = false
	}
}

// releaseResources cancels the in-flight load and timers and destroys
// the decoder. Safe to call repeatedly; used on failure, recovery entry
// and close so no path ever leaks a decoder or timer.
func (c *Controller) releaseResources() {
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.stopStallTimer()
	if c.decoder != nil {
		if err := c.decoder.Destroy(); err != nil {
			c.logger.Warn().Err(err).Str("event", "session.decoder_destroy_failed").Msg("decoder destroy failed")
		}
		c.decoder = nil
	}
}

// resetMediaState clears per-load media fields for a fresh open
// sequence.
func (c *Controller) resetMediaState() {
	c.table = nil
	c.current = -1
	c.requested = -1
	c.position = 0
	c.duration = -1
	c.bufferedTo = 0
	c.unbounded = false
}

func (c *Controller) armStallTimer() {
	c.stopStallTimer()
	c.stallTimer = c.deps.Clock.NewTimer(c.cfg.StallTimeout)
}

func (c *Controller) stopStallTimer() {
	if c.stallTimer != nil {
		c.stallTimer.Stop()
		c.stallTimer = nil
	}
}

// apply commits one accepted transition: state, counters, snapshot,
// journal, bus and metrics. Telemetry is emitted by the callers that
// know the event semantics.
func (c *Controller) apply(tr Transition) {
	from := c.state
	c.state = tr.To
	c.transitions++
	now := c.deps.Clock.Now()
	c.updatedAt = now
	if tr.To == StateClosed {
		c.closedAt = now
	}

	metrics.IncSessionTransition(string(from), string(tr.To), tr.Event.String())
	c.logger.Info().
		Str("event", "session.transition").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(tr.To)).
		Str("trigger", tr.Event.String()).
		Str(log.FieldReason, tr.Reason).
		Msg("session transition")

	c.publishSnapshot()
	c.journal()
	c.journalTransition(tr, from, now)

	if c.deps.Bus != nil {
		c.deps.Bus.TryPublish(TopicStateChanges, StateChange{
			SessionID: c.id,
			From:      from,
			To:        tr.To,
			Event:     tr.Event.String(),
			Reason:    tr.Reason,
			AtMs:      now.UnixMilli(),
			Snapshot:  c.Snapshot(),
		})
	}
}

func (c *Controller) reject(ev EventKind) {
	metrics.IncSessionRejection(string(c.state), ev.String())
	c.logger.Warn().
		Str("event", "session.command_rejected").
		Str(log.FieldOldState, string(c.state)).
		Str("trigger", ev.String()).
		Msg("command not allowed in current state")
}

// emit forwards one unthrottled telemetry event for this session.
func (c *Controller) emit(t telemetry.EventType, attrs map[string]string) {
	c.deps.Telemetry.Record(telemetry.Event{
		SessionID: c.id,
		Type:      t,
		AtUnixMs:  c.deps.Clock.Now().UnixMilli(),
		Position:  c.position,
		Attrs:     attrs,
	})
}

func (c *Controller) publishSnapshot() {
	snap := Snapshot{
		SessionID:        c.id,
		ManifestURL:      c.url,
		State:            c.state,
		Position:         c.position,
		Duration:         c.duration,
		BufferedTo:       c.bufferedTo,
		Unbounded:        c.unbounded,
		CurrentVariant:   c.current,
		RequestedVariant: c.requested,
		Variants:         c.table.Variants(),
		LastError:        c.lastError,
		Autoplay:         c.opts.Autoplay,
		Muted:            c.opts.Muted,
		Transitions:      c.transitions,
		CreatedAtMs:      c.createdAt.UnixMilli(),
		UpdatedAtMs:      c.updatedAt.UnixMilli(),
	}
	if !c.closedAt.IsZero() {
		snap.ClosedAtMs = c.closedAt.UnixMilli()
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

func (c *Controller) journal() {
	if c.deps.Journal == nil {
		return
	}
	rec := &store.SessionRecord{
		SessionID:     c.id,
		ManifestURL:   c.url,
		State:         string(c.state),
		VariantIndex:  c.current,
		Position:      c.position,
		Duration:      c.duration,
		CorrelationID: c.correlationID,
		Transitions:   c.transitions,
		CreatedAtMs:   c.createdAt.UnixMilli(),
		UpdatedAtMs:   c.updatedAt.UnixMilli(),
	}
	if c.lastError != nil {
		rec.LastErrorCategory = string(c.lastError.Category)
		rec.LastErrorMessage = c.lastError.Message
		rec.LastErrorFatal = c.lastError.Fatal
	}
	if !c.closedAt.IsZero() {
		rec.ClosedAtMs = c.closedAt.UnixMilli()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.deps.Journal.PutSession(ctx, rec); err != nil {
		c.logger.Warn().Err(err).Str("event", "session.journal_failed").Msg("journal write failed")
	}
}

func (c *Controller) journalTransition(tr Transition, from SessionState, at time.Time) {
	if c.deps.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.deps.Journal.AppendTransition(ctx, store.TransitionRecord{
		SessionID: c.id,
		Seq:       c.transitions - 1,
		From:      string(from),
		To:        string(tr.To),
		Event:     tr.Event.String(),
		Reason:    tr.Reason,
		AtMs:      at.UnixMilli(),
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("event", "session.journal_failed").Msg("transition journal write failed")
	}
}

