// SPDX-License-Identifier: MIT

package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/playbackd/internal/metrics"
	"github.com/ManuGH/playbackd/internal/playback/store"
	"github.com/ManuGH/playbackd/internal/telemetry"
)

var (
	// ErrSessionLimit is returned when the per-daemon session cap is hit.
	ErrSessionLimit = errors.New("session limit reached")
	// ErrManagerClosed is returned for opens arriving during shutdown.
	ErrManagerClosed = errors.New("session manager is shut down")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// ManagerConfig bounds the session registry.
type ManagerConfig struct {
	MaxSessions   int
	RecoveryDelay time.Duration
	StallTimeout  time.Duration
}

// Manager owns the live playback controllers. It enforces the session
// cap, hands out uuid session ids and closes everything on shutdown.
// Departed sessions are only reachable through the journal; a session id
// is never reused or resurrected.
type Manager struct {
	cfg    ManagerConfig
	deps   Deps
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Controller
	closing  bool
}

// NewManager builds an empty registry.
func NewManager(cfg ManagerConfig, deps Deps) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 64
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With().Str("component", "playback").Logger(),
		sessions: make(map[string]*Controller),
	}
}

// Open creates a controller, registers it and runs its open sequence.
// The returned decision reflects the open outcome; on a capability
// failure the session still exists in ERRORED and can be retried or
// closed through the API.
func (m *Manager) Open(ctx context.Context, manifestURL string, opts OpenOptions) (*Controller, Decision, error) {
	ctx, span := telemetry.Tracer("playbackd.playback").Start(ctx, "session.open")
	defer span.End()

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		span.SetStatus(codes.Error, ErrManagerClosed.Error())
		return nil, Decision{}, ErrManagerClosed
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		m.logger.Warn().
			Str("event", "session.limit_reached").
			Int("max_sessions", m.cfg.MaxSessions).
			Msg("rejecting open, session cap reached")
		span.SetStatus(codes.Error, ErrSessionLimit.Error())
		return nil, Decision{}, ErrSessionLimit
	}

	id := uuid.NewString()
	c := New(id, ControllerConfig{
		RecoveryDelay: m.cfg.RecoveryDelay,
		StallTimeout:  m.cfg.StallTimeout,
	}, m.deps)
	m.sessions[id] = c
	metrics.IncSessionOpened()
	m.mu.Unlock()

	// Reap the registry entry once the controller reaches CLOSED.
	go func() {
		<-c.Done()
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	}()

	d := c.Open(ctx, manifestURL, opts)

	snap := c.Snapshot()
	span.SetAttributes(telemetry.SessionAttributes(id, string(snap.State), snap.CurrentVariant)...)
	if snap.LastError != nil {
		span.SetAttributes(telemetry.ErrorAttributes(string(snap.LastError.Category), snap.LastError.Fatal)...)
	}
	return c, d, nil
}

// Get returns the live controller for id.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// List returns snapshots of all live sessions.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	controllers := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		controllers = append(controllers, c)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(controllers))
	for _, c := range controllers {
		snaps = append(snaps, c.Snapshot())
	}
	return snaps
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Journal exposes the session store for read-through of departed
// sessions. Nil when no journal is configured.
func (m *Manager) Journal() store.StateStore {
	return m.deps.Journal
}

// CloseSession closes one session. Unknown ids resolve against the
// journal: an id that was journaled counts as already closed.
func (m *Manager) CloseSession(ctx context.Context, id string) error {
	if c, ok := m.Get(id); ok {
		return c.Close()
	}
	if m.deps.Journal != nil {
		rec, err := m.deps.Journal.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if rec != nil {
			return nil // already closed, idempotent
		}
	}
	return ErrSessionNotFound
}

// Shutdown closes every live session and waits for the controllers to
// finish, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	controllers := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		controllers = append(controllers, c)
	}
	m.mu.Unlock()

	m.logger.Info().
		Str("event", "manager.shutdown").
		Int("sessions", len(controllers)).
		Msg("closing all playback sessions")

	var wg sync.WaitGroup
	for _, c := range controllers {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			_ = c.Close()
		}(c)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session drain timeout: %w", ctx.Err())
	}
}
