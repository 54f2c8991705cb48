// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]Event
	fail    int           // fail this many posts before succeeding
	calls   int
	entered chan struct{} // when set, receives one signal as a post starts
	block   chan struct{} // when set, posts wait here first
}

func (s *captureSink) PostEvents(ctx context.Context, events []Event) error {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail > 0 {
		s.fail--
		return errors.New("collector unavailable")
	}
	batch := make([]Event, len(events))
	copy(batch, events)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *captureSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Event
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func (s *captureSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func closeEmitter(t *testing.T, e *Emitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))
}

func TestEmitter_FlushesOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink := &captureSink{}
	e := NewEmitter(EmitterConfig{FlushInterval: 20 * time.Millisecond, FlushRate: 1000}, sink, zerolog.Nop())
	defer closeEmitter(t, e)

	e.Record(Event{SessionID: "s1", Type: EventPlay})
	e.Record(Event{SessionID: "s1", Type: EventPause})

	require.Eventually(t, func() bool {
		return len(sink.events()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmitter_BatchSizeTriggersFlush(t *testing.T) {
	sink := &captureSink{}
	// Interval far in the future: only the batch size can trigger.
	e := NewEmitter(EmitterConfig{BatchSize: 3, FlushInterval: time.Hour, FlushRate: 1000}, sink, zerolog.Nop())
	defer closeEmitter(t, e)

	for i := 0; i < 3; i++ {
		e.Record(Event{SessionID: "s1", Type: EventTimeUpdate})
	}

	require.Eventually(t, func() bool {
		return len(sink.events()) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmitter_RetriesOnceThenDrops(t *testing.T) {
	sink := &captureSink{fail: 10}
	e := NewEmitter(EmitterConfig{FlushInterval: 20 * time.Millisecond, FlushRate: 1000}, sink, zerolog.Nop())

	e.Record(Event{SessionID: "s1", Type: EventError})

	// One initial attempt plus exactly one retry for the batch.
	require.Eventually(t, func() bool {
		return sink.callCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	closeEmitter(t, e)

	assert.Equal(t, 2, sink.callCount())
	assert.Empty(t, sink.events())
}

func TestEmitter_ProgressThrottled(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(EmitterConfig{FlushInterval: 10 * time.Millisecond, FlushRate: 1000}, sink, zerolog.Nop())

	for p := 0.0; p <= 12.0; p += 1.0 {
		e.RecordProgress("s1", p)
	}
	closeEmitter(t, e)

	got := sink.events()
	require.Len(t, got, 2)
	assert.Equal(t, EventTimeUpdate, got[0].Type)
	assert.Equal(t, 5.0, got[0].Position)
	assert.Equal(t, 10.0, got[1].Position)
}

func TestEmitter_CloseDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink := &captureSink{}
	e := NewEmitter(EmitterConfig{FlushInterval: time.Hour, FlushRate: 1000}, sink, zerolog.Nop())

	e.Record(Event{SessionID: "s1", Type: EventPlay})
	e.Record(Event{SessionID: "s2", Type: EventPlay})
	e.Record(Event{SessionID: "s3", Type: EventPlay})
	closeEmitter(t, e)

	assert.Len(t, sink.events(), 3)
}

func TestEmitter_RecordAfterCloseIsDropped(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(EmitterConfig{FlushInterval: time.Hour, FlushRate: 1000}, sink, zerolog.Nop())
	closeEmitter(t, e)

	e.Record(Event{SessionID: "s1", Type: EventPlay}) // must not panic or block
	assert.Empty(t, sink.events())
}

func TestEmitter_QueueFullDropsOldest(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	sink := &captureSink{entered: make(chan struct{}, 1), block: release}
	e := NewEmitter(EmitterConfig{
		QueueSize:     2,
		BatchSize:     1,
		FlushInterval: time.Hour,
		FlushRate:     1000,
	}, sink, zerolog.Nop())

	// The first event flushes immediately and parks the worker in the
	// blocked sink; everything after lands in the tiny queue.
	e.Record(Event{SessionID: "first", Type: EventPlay})
	select {
	case <-sink.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never reached the sink")
	}

	for _, id := range []string{"a", "b", "c", "d"} {
		e.Record(Event{SessionID: id, Type: EventPlay}) // never blocks
	}
	close(release)
	closeEmitter(t, e)

	got := sink.events()
	ids := make(map[string]bool, len(got))
	for _, ev := range got {
		ids[ev.SessionID] = true
	}
	assert.True(t, ids["first"])
	assert.True(t, ids["c"], "newer events must survive drop-oldest")
	assert.True(t, ids["d"], "newest event must survive drop-oldest")
	assert.False(t, ids["a"], "oldest queued event must be evicted")
	assert.False(t, ids["b"], "oldest queued event must be evicted")
}
