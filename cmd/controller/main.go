// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	xgclock "github.com/fieldcone/controller/internal/clock"
	"github.com/fieldcone/controller/internal/command"
	"github.com/fieldcone/controller/internal/config"
	"github.com/fieldcone/controller/internal/course"
	"github.com/fieldcone/controller/internal/daemon"
	"github.com/fieldcone/controller/internal/facade"
	"github.com/fieldcone/controller/internal/facadehttp"
	"github.com/fieldcone/controller/internal/heartbeat"
	xglog "github.com/fieldcone/controller/internal/log"
	"github.com/fieldcone/controller/internal/metrics"
	"github.com/fieldcone/controller/internal/registry"
	"github.com/fieldcone/controller/internal/session"
	"github.com/fieldcone/controller/internal/store"
	"github.com/fieldcone/controller/internal/telemetry"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "fieldcone-controller",
		Version: version,
	})
	logger := xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("FIELDCONE_DATA_DIR", "/tmp/fieldcone"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "fieldcone-controller",
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("main")

	cfgHolder := config.NewConfigHolder(cfg, loader, effectiveConfigPath)

	telProvider, err := initTelemetry(ctx, version)
	if err != nil {
		logger.Warn().Err(err).Str("event", "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
	}

	clk := xgclock.NewReal()

	dbPath := filepath.Join(cfg.DataDir, "fieldcone.db")
	storeCfg := store.DefaultConfig(dbPath)
	st, err := store.Open(storeCfg, clk, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "store.open_failed").Msg("failed to open store")
	}

	if err := st.RecoverFromRestart(ctx); err != nil {
		logger.Error().Err(err).Str("event", "store.recover_failed").Msg("failed to recover orphaned sessions/runs from prior restart")
	}

	reg := registry.New()

	// No local LED/audio hardware on the controller host itself; all
	// physical feedback is emitted to remote cones over the mesh.
	emitter := command.New(reg, command.NoopLEDDriver{}, command.NoopAudioPlayer{}, false, false, logger)

	lifecycle := course.New(st, reg, emitter, logger)
	engine := session.New(st, reg, emitter, clk, logger)

	fac := facade.New(st, reg, engine, lifecycle)
	apiServer := facadehttp.New(fac, logger)

	hbCfg := heartbeat.DefaultConfig(cfg.HeartbeatAddr)
	hbCfg.ReadDeadline = cfg.ReadDeadline
	hbCfg.KeepAliveIdle = cfg.KeepAliveIdle
	hbCfg.KeepAlivePeriod = cfg.KeepAlivePeriod
	hbCfg.MeshNetwork = cfg.MeshNetworkLabel
	hbCfg.ServerVersion = cfg.ServerVersion
	hbCfg.SkewThresholdMS = cfg.SkewThresholdMS
	hbServer := heartbeat.New(hbCfg, reg, engine, clk, logger)

	deps := daemon.Deps{
		Config:         cfg,
		APIHandler:     apiServer.Handler(),
		MetricsHandler: metrics.Handler(),
		Heartbeat:      hbServer,
		Logger:         logger,
	}

	mgr, err := daemon.NewManager(deps)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "manager.creation_failed").Msg("failed to create daemon manager")
	}
	mgr.RegisterShutdownHook("store", func(context.Context) error {
		return st.Close()
	})
	if telProvider != nil {
		mgr.RegisterShutdownHook("telemetry", telProvider.Shutdown)
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("listen_addr", cfg.ListenAddr).
		Str("heartbeat_addr", cfg.HeartbeatAddr).
		Msg("starting fieldcone controller")

	app := daemon.NewApp(logger, mgr, cfgHolder, reg)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon app failed")
	}

	logger.Info().Msg("controller exiting")
}

// initTelemetry builds an OpenTelemetry tracing Provider from
// FIELDCONE_TELEMETRY_* environment variables. Disabled by default; when
// FIELDCONE_TELEMETRY_ENABLED is unset or false, NewProvider returns a
// Provider whose Shutdown is a no-op.
func initTelemetry(ctx context.Context, version string) (*telemetry.Provider, error) {
	telCfg := telemetry.Config{
		Enabled:        config.ParseBool("FIELDCONE_TELEMETRY_ENABLED", false),
		ServiceName:    config.ParseString("FIELDCONE_TELEMETRY_SERVICE_NAME", "fieldcone-controller"),
		ServiceVersion: version,
		Environment:    config.ParseString("FIELDCONE_TELEMETRY_ENVIRONMENT", "production"),
		ExporterType:   config.ParseString("FIELDCONE_TELEMETRY_EXPORTER", "grpc"),
		Endpoint:       config.ParseString("FIELDCONE_TELEMETRY_OTLP_ENDPOINT", "localhost:4317"),
		SamplingRate:   config.ParseFloat("FIELDCONE_TELEMETRY_SAMPLING_RATE", 1.0),
	}
	return telemetry.NewProvider(ctx, telCfg)
}
