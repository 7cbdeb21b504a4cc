// Package duration provides canonical time constants for csrfprobe.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ProbeRun)
//
// Reference these instead of hardcoding time.Duration literals.
package duration

import "time"

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPProbing bounds a single navigation or submission (15s)
	HTTPProbing = 15 * time.Second

	// Dial bounds TCP connection setup (10s)
	Dial = 10 * time.Second

	// TLSHandshake bounds the TLS handshake (10s)
	TLSHandshake = 10 * time.Second

	// IdleConnTimeout is how long idle pooled connections live (90s)
	IdleConnTimeout = 90 * time.Second

	// KeepAlive is the TCP keep-alive period (30s)
	KeepAlive = 30 * time.Second
)

// ============================================================================
// OPERATION TIMEOUTS
// ============================================================================

const (
	// ProbeRun bounds a complete four-assertion run (5min)
	ProbeRun = 5 * time.Minute

	// SignalGrace is the window for a second interrupt to force exit (5s)
	SignalGrace = 5 * time.Second

	// ExporterShutdown bounds telemetry flush on exit (5s)
	ExporterShutdown = 5 * time.Second

	// ExporterConnect bounds telemetry exporter setup (10s)
	ExporterConnect = 10 * time.Second
)
