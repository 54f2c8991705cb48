// SPDX-License-Identifier: MIT

// Package health aggregates component checks behind the daemon's
// liveness, readiness and detailed health endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ManuGH/playbackd/internal/log"
)

// Status is the component status taxonomy in the API wire form.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// Check is one component check result.
type Check struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Summary aggregates a set of checks into counts and one overall status.
type Summary struct {
	Total    int    `json:"total"`
	Healthy  int    `json:"healthy"`
	Warning  int    `json:"warning"`
	Critical int    `json:"critical"`
	Unknown  int    `json:"unknown"`
	Overall  Status `json:"overall"`
}

// Summarize reduces checks to a Summary. The overall status is the worst
// individual status: critical beats warning beats unknown beats healthy.
// An empty input and any unrecognized status string resolve to unknown;
// the aggregation never guesses a healthier verdict than its inputs.
func Summarize(checks []Check) Summary {
	s := Summary{Total: len(checks), Overall: StatusUnknown}
	if len(checks) == 0 {
		return s
	}

	for _, c := range checks {
		switch c.Status {
		case StatusHealthy:
			s.Healthy++
		case StatusWarning:
			s.Warning++
		case StatusCritical:
			s.Critical++
		default:
			s.Unknown++
		}
	}

	switch {
	case s.Critical > 0:
		s.Overall = StatusCritical
	case s.Warning > 0:
		s.Overall = StatusWarning
	case s.Unknown > 0:
		s.Overall = StatusUnknown
	default:
		s.Overall = StatusHealthy
	}
	return s
}

// Checker is one registered component check.
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// Response is the payload of the liveness and full health endpoints.
type Response struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Summary   *Summary  `json:"summary,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// ReadinessResponse is the payload of the readiness endpoint.
type ReadinessResponse struct {
	Ready     bool      `json:"ready"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks,omitempty"`
}

const defaultCheckTimeout = 3 * time.Second

// Manager runs registered checkers with a per-check timeout and serves
// the daemon's health endpoints.
type Manager struct {
	version  string
	timeout  time.Duration
	checkers []Checker
}

// NewManager creates a health check manager. A zero checkTimeout selects
// the default.
func NewManager(version string, checkTimeout time.Duration) *Manager {
	if checkTimeout <= 0 {
		checkTimeout = defaultCheckTimeout
	}
	return &Manager{
		version: version,
		timeout: checkTimeout,
	}
}

// RegisterChecker adds a component check. Not safe to call after the
// manager started serving requests.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Run executes every registered checker, each bounded by the per-check
// timeout, and returns the results in registration order.
func (m *Manager) Run(ctx context.Context) ([]Check, Summary) {
	checks := make([]Check, 0, len(m.checkers))
	for _, checker := range m.checkers {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		c := checker.Check(cctx)
		cancel()

		c.ID = checker.Name()
		if c.CheckedAt.IsZero() {
			c.CheckedAt = time.Now()
		}
		checks = append(checks, c)
	}
	return checks, Summarize(checks)
}

// ServeHealth handles the liveness probe. It always answers 200: the
// process being able to answer is the liveness criterion. ?verbose=true
// adds the component checks for human callers.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	resp := Response{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if r.URL.Query().Get("verbose") == "true" && len(m.checkers) > 0 {
		checks, summary := m.Run(r.Context())
		resp.Status = summary.Overall
		resp.Summary = &summary
		resp.Checks = checks
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles the readiness probe. Only a critical component
// fails readiness: warnings cover degraded collaborators the daemon can
// serve without, such as an unreachable telemetry endpoint.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	checks, summary := m.Run(r.Context())
	resp := ReadinessResponse{
		Ready:     summary.Overall != StatusCritical,
		Status:    summary.Overall,
		Timestamp: time.Now(),
		Checks:    checks,
	}
	if len(m.checkers) == 0 {
		// Nothing registered yet still means the process can serve.
		resp.Ready = true
		resp.Status = StatusHealthy
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// ServeSummary handles the full health report on the API surface.
func (m *Manager) ServeSummary(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	checks, summary := m.Run(r.Context())
	resp := Response{
		Status:    summary.Overall,
		Version:   m.version,
		Timestamp: time.Now(),
		Summary:   &summary,
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health summary")
	}

	logger.Debug().
		Str("event", "health.checked").
		Str("status", string(summary.Overall)).
		Int("checks", len(checks)).
		Msg("health summary served")
}
