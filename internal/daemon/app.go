// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/config"
	"github.com/fieldcone/controller/internal/registry"
)

const offlineSweepInterval = 5 * time.Second
const offlineThreshold = 15 * time.Second

// App owns the long-lived background subsystems (config hot-reload, the
// offline-node sweep) and delegates server lifetime to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	registry     *registry.Registry
	reloadSignal os.Signal
}

// NewApp creates the top-level orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, reg *registry.Registry) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		registry:     reg,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts every background subsystem and blocks until ctx is cancelled
// or a subsystem fails fatally.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().Str("event", "config.reload_signal").Msg("received reload signal, reloading config")
					reloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
					err := a.cfgHolder.Reload(reloadCtx)
					cancel()
					if err != nil {
						a.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.registry != nil {
		g.Go(func() error {
			ticker := time.NewTicker(offlineSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case now := <-ticker.C:
					for _, nodeID := range a.registry.SweepOffline(now, offlineThreshold) {
						a.logger.Warn().Str("event", "node.offline").Str("node_id", nodeID).Msg("cone went offline")
					}
				}
			}
		})
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}
