// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration with precedence ENV > File > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a Loader for the given optional YAML file and binary version.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the final AppConfig: defaults, then file overrides, then
// environment variable overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("config: load file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		LogLevel:                     "info",
		DataDir:                      "./data",
		ListenAddr:                   ":8080",
		HeartbeatAddr:                ":7070",
		ServerVersion:                "dev",
		ReadDeadline:                 45 * time.Second,
		KeepAliveIdle:                30 * time.Second,
		KeepAlivePeriod:              5 * time.Second,
		MeshNetworkLabel:             "fieldcone-mesh",
		SkewThresholdMS:              250,
		PatternDefaultSequenceLength: 4,
		PatternDefaultAllowRepeats:   false,
		PatternStepDebounce:          1000 * time.Millisecond,
		PatternGlobalDebounce:        500 * time.Millisecond,
		PatternErrorFeedback:         4000 * time.Millisecond,
		MaxConcurrentRuns:            5,
		MetricsEnabled:               true,
		MetricsListenAddr:            ":9090",
	}
}

// loadFile reads and strictly decodes a YAML config file. Unknown fields
// are rejected to prevent silent typos in operator configuration.
func loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the path is an operator-supplied CLI/ENV value, not untrusted input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) {
	if f.Version != "" {
		cfg.Version = f.Version
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.Server.ListenAddr != "" {
		cfg.ListenAddr = f.Server.ListenAddr
	}
	if f.Server.HeartbeatAddr != "" {
		cfg.HeartbeatAddr = f.Server.HeartbeatAddr
	}
	if f.Server.Version != "" {
		cfg.ServerVersion = f.Server.Version
	}
	if d, ok := parseDurationField(f.Server.ReadDeadline); ok {
		cfg.ReadDeadline = d
	}
	if d, ok := parseDurationField(f.Server.KeepAliveIdle); ok {
		cfg.KeepAliveIdle = d
	}
	if d, ok := parseDurationField(f.Server.KeepAlivePeriod); ok {
		cfg.KeepAlivePeriod = d
	}

	if f.Mesh.NetworkLabel != "" {
		cfg.MeshNetworkLabel = f.Mesh.NetworkLabel
	}
	if f.Mesh.SkewMS != nil {
		cfg.SkewThresholdMS = float64(*f.Mesh.SkewMS)
	}

	if f.Pattern.DefaultSequenceLength != nil {
		cfg.PatternDefaultSequenceLength = *f.Pattern.DefaultSequenceLength
	}
	if f.Pattern.DefaultAllowRepeats != nil {
		cfg.PatternDefaultAllowRepeats = *f.Pattern.DefaultAllowRepeats
	}
	if f.Pattern.StepDebounceMS != nil {
		cfg.PatternStepDebounce = time.Duration(*f.Pattern.StepDebounceMS) * time.Millisecond
	}
	if f.Pattern.GlobalDebounceMS != nil {
		cfg.PatternGlobalDebounce = time.Duration(*f.Pattern.GlobalDebounceMS) * time.Millisecond
	}
	if f.Pattern.ErrorFeedbackMS != nil {
		cfg.PatternErrorFeedback = time.Duration(*f.Pattern.ErrorFeedbackMS) * time.Millisecond
	}

	if f.Session.MaxConcurrentRuns != nil {
		cfg.MaxConcurrentRuns = *f.Session.MaxConcurrentRuns
	}

	if f.Metrics.Enabled != nil {
		cfg.MetricsEnabled = *f.Metrics.Enabled
	}
	if f.Metrics.ListenAddr != "" {
		cfg.MetricsListenAddr = f.Metrics.ListenAddr
	}
}

func parseDurationField(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

func mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString("FIELDCONE_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = ParseString("FIELDCONE_DATA_DIR", cfg.DataDir)

	cfg.ListenAddr = ParseString("FIELDCONE_LISTEN_ADDR", cfg.ListenAddr)
	cfg.HeartbeatAddr = ParseString("FIELDCONE_HEARTBEAT_ADDR", cfg.HeartbeatAddr)
	cfg.ServerVersion = ParseString("FIELDCONE_SERVER_VERSION", cfg.ServerVersion)
	cfg.ReadDeadline = ParseDuration("FIELDCONE_READ_DEADLINE", cfg.ReadDeadline)
	cfg.KeepAliveIdle = ParseDuration("FIELDCONE_KEEPALIVE_IDLE", cfg.KeepAliveIdle)
	cfg.KeepAlivePeriod = ParseDuration("FIELDCONE_KEEPALIVE_PERIOD", cfg.KeepAlivePeriod)

	cfg.MeshNetworkLabel = ParseString("FIELDCONE_MESH_LABEL", cfg.MeshNetworkLabel)
	cfg.SkewThresholdMS = ParseFloat("FIELDCONE_SKEW_THRESHOLD_MS", cfg.SkewThresholdMS)

	cfg.PatternDefaultSequenceLength = ParseInt("FIELDCONE_PATTERN_SEQUENCE_LENGTH", cfg.PatternDefaultSequenceLength)
	cfg.PatternDefaultAllowRepeats = ParseBool("FIELDCONE_PATTERN_ALLOW_REPEATS", cfg.PatternDefaultAllowRepeats)
	cfg.PatternStepDebounce = ParseDuration("FIELDCONE_PATTERN_STEP_DEBOUNCE", cfg.PatternStepDebounce)
	cfg.PatternGlobalDebounce = ParseDuration("FIELDCONE_PATTERN_GLOBAL_DEBOUNCE", cfg.PatternGlobalDebounce)
	cfg.PatternErrorFeedback = ParseDuration("FIELDCONE_PATTERN_ERROR_FEEDBACK", cfg.PatternErrorFeedback)

	cfg.MaxConcurrentRuns = ParseInt("FIELDCONE_MAX_CONCURRENT_RUNS", cfg.MaxConcurrentRuns)

	cfg.MetricsEnabled = ParseBool("FIELDCONE_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsListenAddr = ParseString("FIELDCONE_METRICS_ADDR", cfg.MetricsListenAddr)
}
