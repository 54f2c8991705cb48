// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps are the externally constructed collaborators of the daemon
// Manager. Keeping them injected keeps the lifecycle testable without
// real listeners.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// APIHandler serves the control API listener.
	APIHandler http.Handler

	// MetricsHandler serves the Prometheus listener. Nil disables it.
	MetricsHandler http.Handler
}

// Validate checks that the required dependencies are present.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
