// SPDX-License-Identifier: MIT

package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/playbackd/internal/manifest"
	"github.com/ManuGH/playbackd/internal/playback/store"
	"github.com/ManuGH/playbackd/internal/telemetry"
)

// fakeClock drives controller timers deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) NewTimer(d time.Duration) Timer {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	t := &fakeTimer{ch: make(chan time.Time, 1), deadline: fc.now.Add(d)}
	fc.timers = append(fc.timers, t)
	return t
}

// Advance moves the clock and fires every due, unstopped timer.
func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	now := fc.now
	var due []*fakeTimer
	for _, t := range fc.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	fc.mu.Unlock()

	for _, t := range due {
		t.fire(now)
	}
}

type fakeTimer struct {
	mu       sync.Mutex
	ch       chan time.Time
	deadline time.Time
	stopped  bool
	fired    bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (t *fakeTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return
	}
	t.fired = true
	select {
	case t.ch <- now:
	default:
	}
}

// fakeDecoder records calls and lets tests inject engine events.
type fakeDecoder struct {
	mu        sync.Mutex
	supported bool
	attachErr error
	loadErr   error
	levelErr  error
	seekErr   error
	attached  string
	loaded    string
	levels    []int
	seeks     []float64
	destroyed bool
	events    chan DecoderEvent
}

func newFakeDecoder(supported bool) *fakeDecoder {
	return &fakeDecoder{supported: supported, events: make(chan DecoderEvent, 16)}
}

func (d *fakeDecoder) IsSupported() bool { return d.supported }

func (d *fakeDecoder) Attach(sink string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attachErr != nil {
		return d.attachErr
	}
	d.attached = sink
	return nil
}

func (d *fakeDecoder) LoadSource(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loadErr != nil {
		return d.loadErr
	}
	d.loaded = url
	return nil
}

func (d *fakeDecoder) SetLevel(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.levelErr != nil {
		return d.levelErr
	}
	d.levels = append(d.levels, index)
	return nil
}

func (d *fakeDecoder) Seek(position float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seekErr != nil {
		return d.seekErr
	}
	d.seeks = append(d.seeks, position)
	return nil
}

func (d *fakeDecoder) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	return nil
}

func (d *fakeDecoder) Events() <-chan DecoderEvent { return d.events }

func (d *fakeDecoder) emit(ev DecoderEvent) { d.events <- ev }

func (d *fakeDecoder) loadedURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

func (d *fakeDecoder) isDestroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

func (d *fakeDecoder) levelCalls() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.levels...)
}

func (d *fakeDecoder) seekCalls() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float64(nil), d.seeks...)
}

// stubFactory hands out one fake decoder per load attempt.
type stubFactory struct {
	mu        sync.Mutex
	supported bool
	created   []*fakeDecoder
}

func (f *stubFactory) New(id string) Decoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := newFakeDecoder(f.supported)
	f.created = append(f.created, d)
	return d
}

func (f *stubFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *stubFactory) at(i int) *fakeDecoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.created) {
		return nil
	}
	return f.created[i]
}

type fetchResult struct {
	table *manifest.Table
	err   error
}

// fakeFetcher serves queued results; once the queue is exhausted it
// returns the default three-variant table.
type fakeFetcher struct {
	mu         sync.Mutex
	results    []fetchResult
	calls      int
	block      chan struct{}
	respectCtx bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*manifest.Table, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		if f.respectCtx {
			select {
			case <-block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-block
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < len(f.results) {
		return f.results[idx].table, f.results[idx].err
	}
	return testTable(), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testTable() *manifest.Table {
	return manifest.NewTable([]manifest.Variant{
		{Index: 0, Height: 480, BitrateKbps: 800, URI: "480.m3u8"},
		{Index: 1, Height: 720, BitrateKbps: 2500, URI: "720.m3u8"},
		{Index: 2, Height: 1080, BitrateKbps: 6000, URI: "1080.m3u8"},
	})
}

// recordingTelemetry captures everything the controller emits.
type recordingTelemetry struct {
	mu       sync.Mutex
	events   []telemetry.Event
	progress []float64
	ended    []string
}

func (r *recordingTelemetry) Record(ev telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingTelemetry) RecordProgress(sessionID string, position float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, position)
}

func (r *recordingTelemetry) EndSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, sessionID)
}

func (r *recordingTelemetry) byType(t telemetry.EventType) []telemetry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []telemetry.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingTelemetry) endedSessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ended...)
}

func (r *recordingTelemetry) progressCalls() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.progress...)
}

// testEnv bundles the controller collaborators.
type testEnv struct {
	clock   *fakeClock
	factory *stubFactory
	fetcher *fakeFetcher
	tel     *recordingTelemetry
	journal store.StateStore
}

func newTestEnv() *testEnv {
	return &testEnv{
		clock:   newFakeClock(),
		factory: &stubFactory{supported: true},
		fetcher: &fakeFetcher{},
		tel:     &recordingTelemetry{},
		journal: store.NewMemoryStore(),
	}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Decoders:  e.factory.New,
		Manifests: e.fetcher,
		Telemetry: e.tel,
		Journal:   e.journal,
		Clock:     e.clock,
		Logger:    zerolog.Nop(),
	}
}

const (
	testRecoveryDelay = 2 * time.Second
	testStallTimeout  = 8 * time.Second
	testManifestURL   = "https://cdn.example.com/master.m3u8"
)

func (e *testEnv) controller(t *testing.T) *Controller {
	t.Helper()
	c := New("sess-test", ControllerConfig{
		RecoveryDelay: testRecoveryDelay,
		StallTimeout:  testStallTimeout,
	}, e.deps())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitState(t *testing.T, c *Controller, want SessionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().State == want
	}, 2*time.Second, 2*time.Millisecond, "expected state %s, last seen %s", want, c.Snapshot().State)
}

// waitDecoderLoaded waits for the idx-th created decoder to receive its
// LoadSource call.
func (e *testEnv) waitDecoderLoaded(t *testing.T, idx int) *fakeDecoder {
	t.Helper()
	var dec *fakeDecoder
	require.Eventually(t, func() bool {
		dec = e.factory.at(idx)
		return dec != nil && dec.loadedURL() != ""
	}, 2*time.Second, 2*time.Millisecond, "decoder %d never loaded a source", idx)
	return dec
}

// openPlaying drives a fresh controller to PLAYING with a confirmed
// initial variant.
func (e *testEnv) openPlaying(t *testing.T, c *Controller) *fakeDecoder {
	t.Helper()
	d := c.Open(context.Background(), testManifestURL, OpenOptions{Autoplay: true})
	require.True(t, d.Allowed, "open rejected: %s", d.Reason)

	dec := e.waitDecoderLoaded(t, 0)
	dec.emit(DecoderEvent{Kind: DecoderManifestParsed, Duration: 120})
	dec.emit(DecoderEvent{Kind: DecoderLevelSwitched, Level: 0})
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StatePlaying && s.CurrentVariant == 0
	}, 2*time.Second, 2*time.Millisecond, "session never reached PLAYING with a confirmed variant")
	return dec
}
