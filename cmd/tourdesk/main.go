// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

// Package main is the entry point for the tourdesk command.
//
// Tourdesk is the operator client of the tour booking marketplace. It signs
// in against the backend, keeps the session across runs, sends requests
// through the refresh and CSRF retry pipeline and watches for new
// reservations.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Command line flags (--api-url, --storage, --log-level, ...)
//   - Environment variables (TOURDESK_*)
//   - Config file (tourdesk.yaml, or --config / CONFIG_PATH)
//   - Built-in defaults
//
// # Signals
//
// SIGINT and SIGTERM cancel the command context. `tourdesk watch` then stops
// its supervised services and exits cleanly.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/tourdesk/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
