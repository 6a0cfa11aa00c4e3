// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// Snapshot is an immutable, versioned view of the resolved configuration.
// Each successful reload produces a new Snapshot with a higher Epoch.
type Snapshot struct {
	App   AppConfig
	Epoch uint64
}

// BuildSnapshot wraps a resolved AppConfig as a Snapshot with Epoch 0; the
// ConfigHolder assigns the real monotonic epoch on Swap.
func BuildSnapshot(app AppConfig) Snapshot {
	return Snapshot{App: app}
}
