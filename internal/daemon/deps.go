// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/config"
	"github.com/fieldcone/controller/internal/heartbeat"
)

// Deps bundles the servers the Manager owns and the config it was built
// from; validated once at NewManager time so Start can assume they hold.
type Deps struct {
	Config        config.AppConfig
	APIHandler    http.Handler
	MetricsHandler http.Handler
	Heartbeat     *heartbeat.Server
	Logger        zerolog.Logger
}

// Validate checks that the dependencies are complete enough to start.
func (d Deps) Validate() error {
	if d.APIHandler == nil {
		return fmt.Errorf("daemon: APIHandler is required")
	}
	if d.Heartbeat == nil {
		return fmt.Errorf("daemon: Heartbeat server is required")
	}
	return nil
}
