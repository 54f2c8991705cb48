// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/ManuGH/playbackd/internal/bus"
	"github.com/ManuGH/playbackd/internal/metrics"
	"github.com/ManuGH/playbackd/internal/playback"
)

const defaultExportInterval = 10 * time.Second

// StatusExporter periodically writes the live session list to a JSON
// file so file-polling integrations can observe the daemon without API
// credentials. Writes are atomic and durable: readers never see a
// partial document.
type StatusExporter struct {
	manager  *playback.Manager
	bus      bus.Bus
	path     string
	interval time.Duration
	logger   zerolog.Logger
}

// NewStatusExporter builds an exporter for the given target path. A nil
// bus degrades to interval-only exports.
func NewStatusExporter(manager *playback.Manager, b bus.Bus, path string, interval time.Duration, logger zerolog.Logger) *StatusExporter {
	if interval <= 0 {
		interval = defaultExportInterval
	}
	return &StatusExporter{
		manager:  manager,
		bus:      b,
		path:     path,
		interval: interval,
		logger:   logger.With().Str("component", "status").Logger(),
	}
}

// statusDocument is the exported file schema.
type statusDocument struct {
	GeneratedAtMs int64               `json:"generatedAtMs"`
	SessionCount  int                 `json:"sessionCount"`
	Sessions      []playback.Snapshot `json:"sessions"`
}

// Run exports on every session state change and on a steady interval so
// the file's mtime doubles as a daemon liveness signal. It blocks until
// ctx is done and writes one final document on the way out.
func (e *StatusExporter) Run(ctx context.Context) error {
	var changes <-chan bus.Message
	if e.bus != nil {
		sub, err := e.bus.Subscribe(ctx, playback.TopicStateChanges)
		if err != nil {
			e.logger.Warn().Err(err).Str("event", "status.subscribe_failed").Msg("state change feed unavailable, exporting on interval only")
		} else {
			defer func() { _ = sub.Close() }()
			changes = sub.C()
		}
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.export()

	for {
		select {
		case <-ctx.Done():
			// Final export so the file reflects the shutdown state.
			e.export()
			return nil
		case <-ticker.C:
			e.export()
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			e.drain(changes)
			e.export()
		}
	}
}

// drain coalesces queued change notifications into the next export.
func (e *StatusExporter) drain(changes <-chan bus.Message) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (e *StatusExporter) export() {
	doc := statusDocument{
		GeneratedAtMs: time.Now().UnixMilli(),
		Sessions:      e.manager.List(),
	}
	doc.SessionCount = len(doc.Sessions)

	if err := e.write(doc); err != nil {
		metrics.IncStatusExport("failure")
		e.logger.Warn().
			Err(err).
			Str("event", "status.export_failed").
			Str("path", e.path).
			Msg("status export failed")
		return
	}

	metrics.IncStatusExport("success")
	e.logger.Debug().
		Str("event", "status.exported").
		Str("path", e.path).
		Int("sessions", doc.SessionCount).
		Msg("status file written")
}

// write lands the document atomically: temp file, fsync, rename.
func (e *StatusExporter) write(doc statusDocument) error {
	pending, err := renameio.NewPendingFile(e.path)
	if err != nil {
		return err
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			e.logger.Debug().Err(err).Msg("cleanup pending status file")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}

	return pending.CloseAtomicallyReplace()
}
