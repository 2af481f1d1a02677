// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps contains the dependencies required by the daemon Manager. It is
// intentionally small: fleetd has exactly two HTTP surfaces (the control-plane
// API and the metrics endpoint) plus a logger.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// APIHandler serves the control-plane REST surface
	// (deploy/stop/status/health).
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics. Nil disables the metrics server.
	MetricsHandler http.Handler

	// MetricsAddr is the address the metrics server should listen on.
	// Empty disables the metrics server.
	MetricsAddr string

	// TLSCert and TLSKey, if both non-empty, switch the API server to HTTPS.
	TLSCert string
	TLSKey  string
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
