// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress middleware for the
// control API: panic recovery, request correlation, CORS, security
// headers, metrics, tracing, logging and rate limiting.
package middleware

import (
	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/playbackd/internal/log"
)

// StackConfig configures the canonical ingress middleware stack. Both
// listeners apply it so cross-cutting behavior cannot drift between
// the API and metrics surfaces.
type StackConfig struct {
	// CORS
	EnableCORS     bool
	AllowedOrigins []string

	// Security headers
	EnableSecurityHeaders bool
	CSP                   string

	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// Rate limiting
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
}

// NewRouter constructs a chi router with the canonical stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r. Order matters:
// the recoverer is outermost, correlation comes before anything that
// logs, and the rate limiter runs last so rejected requests still carry
// a request id.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.EnableCORS {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	if cfg.EnableRateLimit {
		r.Use(RateLimit(RateLimitConfig{
			RequestLimit: cfg.RateLimitRPS,
			Burst:        cfg.RateLimitBurst,
		}))
	}
}
