// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

// Package console serves a small loopback HTTP API over the running session:
// its state, the notification feed, route guard decisions and metrics.
// A local UI shell talks to it instead of to the admin backend directly.
package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/guard"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/models"
	"github.com/tomtom215/tourdesk/internal/realtime"
	"github.com/tomtom215/tourdesk/internal/session"
)

const shutdownTimeout = 5 * time.Second

// SessionController is the part of *session.Manager the console drives.
type SessionController interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, username, password string) models.Result
	Logout(ctx context.Context) models.Result
	LogoutAll(ctx context.Context) models.Result
	ChangePassword(ctx context.Context, current, next string) models.Result
	RefreshMenu(ctx context.Context) error
}

// Server is the console HTTP server. It implements suture.Service.
type Server struct {
	cfg      config.ConsoleConfig
	sessions SessionController
	feed     *realtime.Feed
	guard    *guard.Guard
	handler  http.Handler
}

// New builds the server and its router.
func New(cfg config.ConsoleConfig, sessions SessionController, feed *realtime.Feed, g *guard.Guard) *Server {
	s := &Server{cfg: cfg, sessions: sessions, feed: feed, guard: g}
	s.handler = s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDWithLogging)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.cfg))
	r.Use(accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.cfg))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSession)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Post("/logout-all", s.handleLogoutAll)
			r.Post("/change-password", s.handleChangePassword)
			r.Post("/menu/refresh", s.handleRefreshMenu)
		})

		r.Get("/notifications", s.handleNotifications)
		r.Post("/notifications/seen", s.handleNotificationsSeen)
		r.Post("/navigate", s.handleNavigate)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not found", nil)
	})
	return r
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("console listen on %s: %w", s.cfg.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", ln.Addr().String()).Msg("Console listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("console server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("Console shutdown incomplete")
		}
		<-errCh
		logging.Info().Msg("Console stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture logs.
func (s *Server) String() string {
	return "console"
}
