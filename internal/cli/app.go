// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/tomtom215/tourdesk/internal/api"
	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/session"
	"github.com/tomtom215/tourdesk/internal/storage"
)

// app holds the dependencies a command runs against.
type app struct {
	cfg      *config.Config
	store    storage.Store
	client   *api.Client
	sessions *session.Manager
	streams  streams
}

// newApp opens storage, builds the client and restores the persisted session.
func newApp(ctx context.Context, cfg *config.Config, s streams) (*app, error) {
	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	client, err := api.New(cfg.API, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	return assemble(ctx, cfg, store, client, s), nil
}

// assemble wires the session manager and restores the session.
func assemble(ctx context.Context, cfg *config.Config, store storage.Store, client *api.Client, s streams) *app {
	sessions := session.New(client, store,
		session.WithNavigator(loginHint{w: s.errOut}),
		session.WithNotifier(streamNotifier{out: s.out, errOut: s.errOut}),
	)
	sessions.Restore(ctx)

	return &app{
		cfg:      cfg,
		store:    store,
		client:   client,
		sessions: sessions,
		streams:  s,
	}
}

// Close releases the storage.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close session storage")
	}
}

// requireSession fails when no user is signed in.
func (a *app) requireSession() (session.Snapshot, error) {
	snap := a.sessions.Snapshot()
	if !snap.IsAuthenticated {
		return snap, fmt.Errorf("%w: run `tourdesk login` first", session.ErrNotAuthenticated)
	}
	return snap, nil
}

// loginHint is the terminal's "navigate to login".
type loginHint struct {
	w io.Writer
}

func (h loginHint) ToLogin(context.Context) {
	fmt.Fprintln(h.w, "Session expired. Run `tourdesk login` to sign in again.")
}

// streamNotifier prints confirmations to stdout and errors to stderr.
type streamNotifier struct {
	out    io.Writer
	errOut io.Writer
}

func (n streamNotifier) Success(msg string) {
	fmt.Fprintln(n.out, msg)
}

func (n streamNotifier) Error(msg string) {
	fmt.Fprintln(n.errOut, msg)
}
