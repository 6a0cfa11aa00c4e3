// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingManager is returned by App.Run when no Manager was wired.
	ErrMissingManager = errors.New("daemon: no manager configured")
	// ErrManagerNotStarted is returned by Shutdown when Start was never called.
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)
