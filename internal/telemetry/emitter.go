// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/playbackd/internal/metrics"
	"github.com/ManuGH/playbackd/internal/resilience"
)

const (
	defaultQueueSize     = 256
	defaultBatchSize     = 32
	defaultFlushInterval = time.Second
	defaultFlushRate     = 4.0
	defaultProgressStep  = 5.0
	defaultDrainTimeout  = 3 * time.Second
)

// Sink delivers finished batches; implemented by *Client.
type Sink interface {
	PostEvents(ctx context.Context, events []Event) error
}

// EmitterConfig tunes the forwarding pipeline.
type EmitterConfig struct {
	QueueSize     int           // pending event capacity
	BatchSize     int           // events per post
	FlushInterval time.Duration // max time an event waits in the queue
	FlushRate     float64       // posts per second ceiling
	FlushBurst    int           // post burst allowance
	ProgressStep  float64       // min playhead advance per time_update, seconds
	DrainTimeout  time.Duration // budget for the close-time flush
}

func (c *EmitterConfig) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.FlushRate <= 0 {
		c.FlushRate = defaultFlushRate
	}
	if c.FlushBurst <= 0 {
		c.FlushBurst = 1
	}
	if c.ProgressStep <= 0 {
		c.ProgressStep = defaultProgressStep
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
}

// Emitter queues playback events and forwards them to the sink in
// batches. Recording never blocks playback: when the queue is full the
// oldest pending event is dropped to admit the new one, and a failed
// post gets exactly one immediate retry before the batch is discarded.
type Emitter struct {
	cfg      EmitterConfig
	sink     Sink
	throttle *ProgressThrottle
	limiter  *rate.Limiter
	logger   zerolog.Logger

	queue    chan Event
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewEmitter starts the forwarding worker. The caller must Close the
// emitter to flush pending events and stop the worker.
func NewEmitter(cfg EmitterConfig, sink Sink, logger zerolog.Logger) *Emitter {
	cfg.applyDefaults()
	e := &Emitter{
		cfg:      cfg,
		sink:     sink,
		throttle: NewProgressThrottle(cfg.ProgressStep),
		limiter:  rate.NewLimiter(rate.Limit(cfg.FlushRate), cfg.FlushBurst),
		logger:   logger.With().Str("component", "telemetry").Logger(),
		queue:    make(chan Event, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go e.run()
	return e
}

// Record enqueues one event. Fire and forget: after Close, or when the
// queue stays full, events are counted as dropped and the caller is
// never blocked or failed.
func (e *Emitter) Record(ev Event) {
	select {
	case <-e.stop:
		metrics.IncTelemetryDropped("shutdown", 1)
		return
	default:
	}

	for {
		select {
		case e.queue <- ev:
			metrics.IncTelemetryEmitted(string(ev.Type))
			metrics.SetTelemetryQueueDepth(len(e.queue))
			return
		default:
		}
		// Queue full: evict the oldest pending event and try again.
		select {
		case old := <-e.queue:
			metrics.IncTelemetryDropped("queue_full", 1)
			e.logger.Debug().
				Str("event", "telemetry.dropped").
				Str("session_id", old.SessionID).
				Str("type", string(old.Type)).
				Msg("queue full, dropping oldest event")
		default:
		}
	}
}

// RecordProgress offers a playhead position to the throttle and emits a
// time_update when enough media time has passed since the last one.
func (e *Emitter) RecordProgress(sessionID string, position float64) {
	if !e.throttle.Offer(sessionID, position) {
		metrics.IncTelemetryThrottled()
		return
	}
	e.Record(Event{
		SessionID: sessionID,
		Type:      EventTimeUpdate,
		AtUnixMs:  time.Now().UnixMilli(),
		Position:  position,
	})
}

// EndSession clears per-session throttle state.
func (e *Emitter) EndSession(sessionID string) {
	e.throttle.Forget(sessionID)
}

// Close stops the worker after a final bounded flush of the queue.
func (e *Emitter) Close(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stop) })
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, e.cfg.BatchSize)
	for {
		select {
		case ev := <-e.queue:
			batch = append(batch, ev)
		fill:
			for len(batch) < e.cfg.BatchSize {
				select {
				case ev := <-e.queue:
					batch = append(batch, ev)
				default:
					break fill
				}
			}
			if len(batch) >= e.cfg.BatchSize {
				e.flush(&batch)
			}
		case <-ticker.C:
			e.flush(&batch)
		case <-e.stop:
			e.drain(batch)
			return
		}
		metrics.SetTelemetryQueueDepth(len(e.queue))
	}
}

func (e *Emitter) flush(batch *[]Event) {
	if len(*batch) == 0 {
		return
	}
	_ = e.limiter.Wait(context.Background())
	e.post(context.Background(), *batch)
	*batch = (*batch)[:0]
}

// post delivers one batch with a single immediate retry. Batches that
// still fail, or that hit an open breaker, are dropped so the queue can
// never back up into playback.
func (e *Emitter) post(ctx context.Context, events []Event) {
	err := e.sink.PostEvents(ctx, events)
	if err == nil {
		return
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) && ctx.Err() == nil {
		metrics.IncTelemetryRetry()
		if err = e.sink.PostEvents(ctx, events); err == nil {
			return
		}
	}
	metrics.IncTelemetryDropped("post_failed", len(events))
	e.logger.Warn().
		Err(err).
		Str("event", "telemetry.post_failed").
		Int("events", len(events)).
		Msg("telemetry batch dropped")
}

// drain empties the queue on shutdown within the configured budget.
func (e *Emitter) drain(pending []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
	defer cancel()

collect:
	for {
		select {
		case ev := <-e.queue:
			pending = append(pending, ev)
		default:
			break collect
		}
	}

	for start := 0; start < len(pending); start += e.cfg.BatchSize {
		if ctx.Err() != nil {
			metrics.IncTelemetryDropped("shutdown", len(pending)-start)
			break
		}
		end := start + e.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		e.post(ctx, pending[start:end])
	}
	metrics.SetTelemetryQueueDepth(0)
}
