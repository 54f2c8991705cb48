// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/playbackd/internal/api"
	"github.com/ManuGH/playbackd/internal/config"
	"github.com/ManuGH/playbackd/internal/log"
)

// App owns the long-lived runtime subsystems (config watcher, reload
// wiring, status exporter) and delegates listener management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	apiServer    *api.Server
	exporter     *StatusExporter
	reloadSignal os.Signal
}

// NewApp creates the runtime orchestrator. cfgHolder and exporter are
// optional; without them the corresponding subsystems stay off.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, apiServer *api.Server, exporter *StatusExporter) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		apiServer:    apiServer,
		exporter:     exporter,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// The config watcher is best-effort: a broken inotify setup must not
	// keep the daemon from serving.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// Apply every config swap to the API server.
	if a.cfgHolder != nil && a.apiServer != nil {
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apiServer.UpdateConfig(cfg)
					log.SetLevel(cfg.LogLevel)
					a.logger.Info().Str("event", "config.applied").Msg("configuration applied")
				}
			}
		})
	}

	// SIGHUP triggers a manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	// Status file exporter (stops via ctx).
	if a.exporter != nil {
		g.Go(func() error {
			return a.exporter.Run(ctx)
		})
	}

	// Listener lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// WaitForShutdown returns a context cancelled by SIGINT or SIGTERM.
func WaitForShutdown() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
