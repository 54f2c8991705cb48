// SPDX-License-Identifier: MIT

// Package engine provides the built-in headless decoder: it validates a
// stream's master and media playlists over the network and paces the
// playhead in real time, so sessions supervise a live timeline without a
// rendering pipeline on the host.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/playbackd/internal/log"
	"github.com/ManuGH/playbackd/internal/manifest"
	"github.com/ManuGH/playbackd/internal/metrics"
	"github.com/ManuGH/playbackd/internal/playback"
	platformnet "github.com/ManuGH/playbackd/internal/platform/net"
)

const (
	defaultTickInterval = 500 * time.Millisecond
	defaultBufferAhead  = 30.0
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBytes     = 2 << 20

	// minRefreshInterval floors the live playlist reload cadence so a
	// tiny TARGETDURATION cannot hammer the origin.
	minRefreshInterval = 5 * time.Second

	// maxRefreshFailures is the number of consecutive live reload
	// failures tolerated before the origin counts as gone.
	maxRefreshFailures = 2
)

// ErrDestroyed is returned by calls against a destroyed engine.
var ErrDestroyed = errors.New("engine destroyed")

// Config bounds the engine's network and pacing behavior.
type Config struct {
	// FetchTimeout is the per-playlist download deadline.
	FetchTimeout time.Duration
	// TickInterval is the progress report cadence.
	TickInterval time.Duration
	// BufferAhead is the simulated buffered lead in seconds of media time.
	BufferAhead float64
	// MaxBytes rejects oversized playlist bodies.
	MaxBytes int64
}

func (c *Config) applyDefaults() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.BufferAhead <= 0 {
		c.BufferAhead = defaultBufferAhead
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBytes
	}
}

// NewFactory returns a decoder factory handing out one fresh engine per
// load attempt, as the controller's recovery contract requires.
func NewFactory(cfg Config, policy platformnet.OutboundPolicy, logger zerolog.Logger) playback.DecoderFactory {
	return func(sessionID string) playback.Decoder {
		return New(sessionID, cfg, policy, logger)
	}
}

// Engine is one decoder instance bound to one load attempt. It
// implements playback.Decoder.
type Engine struct {
	id     string
	cfg    Config
	policy platformnet.OutboundPolicy
	client *http.Client
	logger zerolog.Logger

	events chan playback.DecoderEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	destroyOnce sync.Once

	mu        sync.Mutex
	attached  bool
	loading   bool
	destroyed bool
	masterURL *url.URL
	table     *manifest.Table
	level     int
	position  float64
	duration  float64 // -1 while unknown or unbounded
	unbounded bool
}

// New builds an idle engine for one session. Timeouts are enforced per
// fetch via context; http.Client.Timeout is left unset.
func New(sessionID string, cfg Config, policy platformnet.OutboundPolicy, logger zerolog.Logger) *Engine {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		id:       sessionID,
		cfg:      cfg,
		policy:   policy,
		client:   &http.Client{},
		logger:   logger.With().Str("component", "engine").Str(log.FieldSessionID, sessionID).Logger(),
		events:   make(chan playback.DecoderEvent, 16),
		ctx:      ctx,
		cancel:   cancel,
		level:    -1,
		duration: -1,
	}
}

// IsSupported reports decoding capability. The headless engine needs
// nothing from the host beyond outbound HTTP, so it is always available.
func (e *Engine) IsSupported() bool { return true }

// Attach binds the engine to its sink. The headless engine has no real
// output; attach only fences the call order.
func (e *Engine) Attach(sink string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if e.attached {
		return errors.New("engine already attached")
	}
	if sink == "" {
		return errors.New("empty sink")
	}
	e.attached = true
	return nil
}

// LoadSource starts loading the master playlist at rawURL. The load runs
// asynchronously; outcome arrives on the event channel as either a
// manifest-parsed event or a fatal error.
func (e *Engine) LoadSource(rawURL string) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	if !e.attached {
		e.mu.Unlock()
		return errors.New("engine not attached")
	}
	if e.loading {
		e.mu.Unlock()
		return errors.New("source already loading")
	}
	e.loading = true
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.load(rawURL)
	}()
	return nil
}

// SetLevel requests a switch to the given variant. The switch is
// confirmed asynchronously after the target media playlist validated.
func (e *Engine) SetLevel(index int) error {
	e.mu.Lock()
	table := e.table
	destroyed := e.destroyed
	e.mu.Unlock()

	if destroyed {
		return ErrDestroyed
	}
	if table == nil {
		return errors.New("no source loaded")
	}
	if _, ok := table.At(index); !ok {
		return fmt.Errorf("level %d out of range", index)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.loadVariant(index); err != nil {
			if e.ctx.Err() != nil {
				return
			}
			e.logger.Warn().Err(err).Str("event", "engine.level_load_failed").Int(log.FieldVariantIndex, index).Msg("variant playlist unavailable")
			e.emit(playback.DecoderEvent{
				Kind:    playback.DecoderFatalError,
				Err:     fmt.Errorf("level %d playlist: %w", index, err),
				ErrKind: playback.ErrKindNetwork,
			})
			return
		}
		e.mu.Lock()
		e.level = index
		e.mu.Unlock()
		e.emit(playback.DecoderEvent{Kind: playback.DecoderLevelSwitched, Level: index})
	}()
	return nil
}

// Seek repositions the playhead, clamped to the known timeline.
func (e *Engine) Seek(position float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if e.table == nil {
		return errors.New("no source loaded")
	}
	if position < 0 {
		position = 0
	}
	if e.duration >= 0 && position > e.duration {
		position = e.duration
	}
	e.position = position
	return nil
}

// Events returns the engine notification channel. Closed by Destroy.
func (e *Engine) Events() <-chan playback.DecoderEvent { return e.events }

// Destroy stops all engine goroutines and closes the event channel.
// Idempotent.
func (e *Engine) Destroy() error {
	e.destroyOnce.Do(func() {
		e.mu.Lock()
		e.destroyed = true
		e.mu.Unlock()
		e.cancel()
		e.wg.Wait()
		close(e.events)
	})
	return nil
}

// load runs the full load sequence: master playlist, initial variant,
// then the pacing loop until the engine is destroyed.
func (e *Engine) load(rawURL string) {
	body, err := e.download(rawURL)
	if err != nil {
		e.fail(playback.ErrKindNetwork, fmt.Errorf("master playlist: %w", err))
		return
	}
	table, err := manifest.ParseMaster(strings.NewReader(body))
	if err != nil {
		e.fail(playback.ErrKindMedia, fmt.Errorf("master playlist: %w", err))
		return
	}
	master, err := url.Parse(rawURL)
	if err != nil {
		e.fail(playback.ErrKindMedia, fmt.Errorf("master url: %w", err))
		return
	}

	e.mu.Lock()
	e.table = table
	e.masterURL = master
	e.level = 0
	e.mu.Unlock()

	info, err := e.loadVariant(0)
	if err != nil {
		e.fail(playback.ErrKindNetwork, fmt.Errorf("initial variant: %w", err))
		return
	}

	duration := -1.0
	unbounded := true
	if info.Ended {
		duration = info.TotalDuration
		unbounded = false
	}

	e.mu.Lock()
	e.position = 0
	e.duration = duration
	e.unbounded = unbounded
	buffered := e.bufferedToLocked()
	e.mu.Unlock()

	e.logger.Info().
		Str("event", "engine.loaded").
		Int("variants", table.Len()).
		Int("segments", info.SegmentCount).
		Float64("duration", duration).
		Bool("unbounded", unbounded).
		Msg("source loaded")

	e.emit(playback.DecoderEvent{
		Kind:       playback.DecoderManifestParsed,
		Duration:   duration,
		BufferedTo: buffered,
		Unbounded:  unbounded,
	})
	e.emit(playback.DecoderEvent{Kind: playback.DecoderLevelSwitched, Level: 0})

	e.pace(info)
}

// pace advances the playhead in wall time and, for live streams, reloads
// the media playlist so a dead origin surfaces as a network failure.
func (e *Engine) pace(info *manifest.MediaInfo) {
	tick := time.NewTicker(e.cfg.TickInterval)
	defer tick.Stop()

	var refresh <-chan time.Time
	e.mu.Lock()
	unbounded := e.unbounded
	e.mu.Unlock()
	if unbounded {
		interval := time.Duration(info.TargetDuration * float64(time.Second))
		if interval < minRefreshInterval {
			interval = minRefreshInterval
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		refresh = t.C
	}

	last := time.Now()
	refreshFailures := 0
	for {
		select {
		case <-e.ctx.Done():
			return

		case now := <-tick.C:
			e.emit(e.advance(now.Sub(last).Seconds()))
			last = now

		case <-refresh:
			e.mu.Lock()
			level := e.level
			e.mu.Unlock()
			latest, err := e.loadVariant(level)
			if err != nil {
				if e.ctx.Err() != nil {
					return
				}
				refreshFailures++
				e.logger.Warn().
					Err(err).
					Str("event", "engine.refresh_failed").
					Int("consecutive", refreshFailures).
					Msg("live playlist reload failed")
				if refreshFailures >= maxRefreshFailures {
					e.emit(playback.DecoderEvent{
						Kind:    playback.DecoderFatalError,
						Err:     fmt.Errorf("live playlist reload: %w", err),
						ErrKind: playback.ErrKindNetwork,
					})
					return
				}
				continue
			}
			refreshFailures = 0
			e.logger.Debug().
				Str("event", "engine.refreshed").
				Int("segments", latest.SegmentCount).
				Msg("live playlist reloaded")
		}
	}
}

// advance moves the playhead by elapsed seconds and builds the progress
// report. A bounded timeline pins the playhead at its end; progress keeps
// flowing so the session is not mistaken for stalled.
func (e *Engine) advance(elapsed float64) playback.DecoderEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.position += elapsed
	if e.duration >= 0 && e.position > e.duration {
		e.position = e.duration
	}
	return playback.DecoderEvent{
		Kind:       playback.DecoderBufferProgress,
		Position:   e.position,
		Duration:   e.duration,
		BufferedTo: e.bufferedToLocked(),
		Unbounded:  e.unbounded,
	}
}

// bufferedToLocked computes the simulated buffered edge. Callers hold mu.
func (e *Engine) bufferedToLocked() float64 {
	buffered := e.position + e.cfg.BufferAhead
	if e.duration >= 0 && buffered > e.duration {
		buffered = e.duration
	}
	return buffered
}

// loadVariant downloads and parses the media playlist of one variant.
func (e *Engine) loadVariant(index int) (*manifest.MediaInfo, error) {
	e.mu.Lock()
	table := e.table
	master := e.masterURL
	e.mu.Unlock()

	v, ok := table.At(index)
	if !ok {
		return nil, fmt.Errorf("level %d out of range", index)
	}
	ref, err := url.Parse(v.URI)
	if err != nil {
		return nil, fmt.Errorf("variant uri: %w", err)
	}

	start := time.Now()
	body, err := e.download(master.ResolveReference(ref).String())
	if err != nil {
		metrics.ObserveEnginePlaylistFetch("error", time.Since(start).Seconds())
		return nil, err
	}
	metrics.ObserveEnginePlaylistFetch("success", time.Since(start).Seconds())

	info, err := manifest.ParseMedia(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("media playlist: %w", err)
	}
	return info, nil
}

func (e *Engine) download(rawURL string) (string, error) {
	target, err := platformnet.ValidateOutboundURL(e.ctx, rawURL, e.policy)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.apple.mpegurl, application/x-mpegURL, */*")

	res, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("playlist fetch: unexpected status %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, e.cfg.MaxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > e.cfg.MaxBytes {
		return "", fmt.Errorf("playlist exceeds %d bytes", e.cfg.MaxBytes)
	}
	return string(data), nil
}

// fail reports a fatal load failure unless the engine is shutting down.
func (e *Engine) fail(kind playback.DecoderErrKind, err error) {
	if e.ctx.Err() != nil {
		return
	}
	e.logger.Warn().Err(err).Str("event", "engine.load_failed").Msg("source load failed")
	e.emit(playback.DecoderEvent{Kind: playback.DecoderFatalError, Err: err, ErrKind: kind})
}

func (e *Engine) emit(ev playback.DecoderEvent) {
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}
