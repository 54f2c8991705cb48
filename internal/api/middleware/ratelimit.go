// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig configures the sliding-window request limiter.
type RateLimitConfig struct {
	// RequestLimit is the sustained per-second rate per client IP.
	RequestLimit int
	// Burst widens the window allowance for short spikes.
	Burst int
	// KeyFunc extracts the limiter key; defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit limits requests per client using httprate's sliding window
// counter. Rejected requests get a JSON 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	window := time.Second
	limit := cfg.RequestLimit
	if cfg.Burst > limit {
		// Express the burst as a wider window with the same sustained rate.
		window = time.Duration(cfg.Burst/max(limit, 1)+1) * time.Second
		limit = cfg.RequestLimit * int(window/time.Second)
	}

	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
		}),
	)
}
