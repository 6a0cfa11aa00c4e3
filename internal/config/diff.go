// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "fmt"

// FieldChange describes one field that differs between two AppConfig values.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// Diff returns the list of fields that changed between old and next,
// used to log exactly what a hot reload altered.
func Diff(old, next AppConfig) []FieldChange {
	var changes []FieldChange
	add := func(field, oldV, newV string) {
		if oldV != newV {
			changes = append(changes, FieldChange{Field: field, Old: oldV, New: newV})
		}
	}

	add("logLevel", old.LogLevel, next.LogLevel)
	add("dataDir", old.DataDir, next.DataDir)
	add("listenAddr", old.ListenAddr, next.ListenAddr)
	add("heartbeatAddr", old.HeartbeatAddr, next.HeartbeatAddr)
	add("meshNetworkLabel", old.MeshNetworkLabel, next.MeshNetworkLabel)
	add("skewThresholdMs", fmt.Sprintf("%.0f", old.SkewThresholdMS), fmt.Sprintf("%.0f", next.SkewThresholdMS))
	add("pattern.defaultSequenceLength", fmt.Sprint(old.PatternDefaultSequenceLength), fmt.Sprint(next.PatternDefaultSequenceLength))
	add("pattern.defaultAllowRepeats", fmt.Sprint(old.PatternDefaultAllowRepeats), fmt.Sprint(next.PatternDefaultAllowRepeats))
	add("pattern.stepDebounce", old.PatternStepDebounce.String(), next.PatternStepDebounce.String())
	add("pattern.globalDebounce", old.PatternGlobalDebounce.String(), next.PatternGlobalDebounce.String())
	add("session.maxConcurrentRuns", fmt.Sprint(old.MaxConcurrentRuns), fmt.Sprint(next.MaxConcurrentRuns))
	add("metrics.enabled", fmt.Sprint(old.MetricsEnabled), fmt.Sprint(next.MetricsEnabled))
	add("metrics.listenAddr", old.MetricsListenAddr, next.MetricsListenAddr)

	return changes
}
