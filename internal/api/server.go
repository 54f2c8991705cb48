// SPDX-License-Identifier: MIT

// Package api serves the control surface of the playback daemon: session
// lifecycle over JSON, health probes and the problem+json error contract.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/playbackd/internal/api/middleware"
	"github.com/ManuGH/playbackd/internal/auth"
	"github.com/ManuGH/playbackd/internal/config"
	"github.com/ManuGH/playbackd/internal/health"
	"github.com/ManuGH/playbackd/internal/log"
	"github.com/ManuGH/playbackd/internal/playback"
)

// Server wires the session manager and health checks into the HTTP
// control API.
type Server struct {
	mu  sync.RWMutex
	cfg config.AppConfig

	manager *playback.Manager
	health  *health.Manager
	logger  zerolog.Logger

	startTime time.Time
}

// NewServer builds the control API server. The manager is required; a
// nil health manager disables the probe routes.
func NewServer(cfg config.AppConfig, manager *playback.Manager, healthMgr *health.Manager) *Server {
	return &Server{
		cfg:       cfg,
		manager:   manager,
		health:    healthMgr,
		logger:    log.WithComponent("api"),
		startTime: time.Now(),
	}
}

// UpdateConfig swaps the hot-reloadable configuration. The API token
// takes effect on the next request; listener and middleware settings
// need a restart.
func (s *Server) UpdateConfig(cfg config.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Router assembles the middleware stack and the route tree.
func (s *Server) Router() chi.Router {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	tracingService := ""
	if cfg.Tracing.Enabled {
		tracingService = "playbackd-api"
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.API.CORSOrigins,
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
		EnableRateLimit:       cfg.API.RateLimitEnabled,
		RateLimitRPS:          cfg.API.RateLimitRPS,
		RateLimitBurst:        cfg.API.RateLimitBurst,
	})

	// Probe routes stay unauthenticated so orchestrators can reach them.
	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		if s.health != nil {
			r.Get("/health", s.health.ServeSummary)
		}
		r.Get("/version", s.handleVersion)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleOpenSession)
			r.Get("/", s.handleListSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCloseSession)
				r.Post("/play", s.handlePlay)
				r.Post("/pause", s.handlePause)
				r.Post("/seek", s.handleSeek)
				r.Post("/variant", s.handleSetVariant)
				r.Post("/retry", s.handleRetry)
				r.Post("/signals", s.handleSignal)
			})
		})
	})

	return r
}

// authMiddleware enforces bearer-token authentication. An empty
// configured token fails closed: the daemon refuses API access rather
// than silently running open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		token := s.cfg.APIToken
		s.mu.RUnlock()

		if token == "" {
			logger := log.WithComponentFromContext(r.Context(), "auth")
			logger.Error().
				Str("event", "auth.fail_closed").
				Msg("no API token configured, denying access")
			RespondError(w, r, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		reqToken := auth.ExtractToken(r)
		if reqToken == "" {
			logger := log.WithComponentFromContext(r.Context(), "auth")
			logger.Warn().
				Str("event", "auth.missing_header").
				Msg("authorization header missing")
			RespondError(w, r, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		if !auth.AuthorizeToken(reqToken, token) {
			logger := log.WithComponentFromContext(r.Context(), "auth")
			logger.Warn().
				Str("event", "auth.invalid_token").
				Msg("invalid api token")
			RespondError(w, r, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleVersion reports build identity and uptime.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	version := s.cfg.Version
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"version":       version,
		"uptimeSeconds": int64(time.Since(s.startTime).Seconds()),
		"sessions":      s.manager.Count(),
	})
}
