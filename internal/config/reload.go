// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/fieldcone/controller/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ConfigHolder holds configuration with atomic hot-reload support: either
// the whole new config validates and replaces the old one, or the old one
// stays in effect and Reload returns an error.
type ConfigHolder struct {
	reloadOpMu sync.Mutex
	epoch      atomic.Uint64
	snapshot   atomic.Pointer[Snapshot]
	loader     *Loader
	configPath string
	configDir  string
	configFile string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewConfigHolder creates a holder seeded with an already-resolved config.
func NewConfigHolder(initial AppConfig, loader *Loader, configPath string) *ConfigHolder {
	h := &ConfigHolder{
		loader:          loader,
		configPath:      configPath,
		logger:          xglog.WithComponent("config"),
		reloadListeners: make([]chan<- AppConfig, 0),
	}
	snap := BuildSnapshot(initial)
	h.Swap(&snap)
	return h
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	return h.Current().App
}

// Current returns the current immutable snapshot.
func (h *ConfigHolder) Current() *Snapshot {
	if s := h.snapshot.Load(); s != nil {
		return s
	}
	return &Snapshot{}
}

// Swap atomically installs next, assigning it the next monotonic epoch.
func (h *ConfigHolder) Swap(next *Snapshot) (prev *Snapshot) {
	if next == nil {
		return h.snapshot.Load()
	}
	next.Epoch = h.epoch.Add(1)
	return h.snapshot.Swap(next)
}

// Reload re-runs the Loader and, if the result validates, swaps it in.
// Either the whole config is replaced atomically or nothing changes.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.reloadOpMu.Lock()
	defer h.reloadOpMu.Unlock()

	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	oldCfg := h.Get()
	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	snap := BuildSnapshot(newCfg)
	h.Swap(&snap)
	h.notifyListeners(newCfg)

	for _, c := range Diff(oldCfg, newCfg) {
		h.logger.Info().Str("event", "config.field_changed").Str("field", c.Field).Str("old", c.Old).Str("new", c.New).Msg("configuration field changed")
	}
	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the config file for changes and reloads on write.
// A no-op if configPath is empty (ENV-only configuration).
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("config file watcher disabled (ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher
	h.configDir = filepath.Dir(h.configPath)
	h.configFile = filepath.Base(h.configPath)

	if err := watcher.Add(h.configDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().Str("event", "config.watcher_started").Str("path", h.configPath).Msg("watching config file for changes")
	go h.watchLoop(ctx)
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	const debounceDuration = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if h.configFile != "" && filepath.Base(event.Name) != h.configFile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher, if running.
func (h *ConfigHolder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel to receive config reload notifications.
// The caller is responsible for closing the channel.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *ConfigHolder) notifyListeners(cfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()
	for _, ch := range h.reloadListeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str("event", "config.listener_slow").Msg("reload listener channel full, dropping notification")
		}
	}
}
