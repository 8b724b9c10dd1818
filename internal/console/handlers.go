// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package console

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tourdesk/internal/guard"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/models"
	"github.com/tomtom215/tourdesk/internal/session"
)

const maxBodyBytes = 64 << 10

// response mirrors the backend envelope so one client shape fits both.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type navigateRequest struct {
	Path string `json:"path"`
}

func respondJSON(w http.ResponseWriter, status int, body *response) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, &response{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		logging.Warn().Err(err).Int("status", status).Msg("Console request failed")
	}
	respondJSON(w, status, &response{Message: message})
}

// respondResult maps a session operation result onto a status code.
func respondResult(w http.ResponseWriter, res models.Result, failStatus int, data any) {
	if res.Success {
		respondJSON(w, http.StatusOK, &response{Success: true, Data: data})
		return
	}
	respondJSON(w, failStatus, &response{Message: res.Error})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.sessions.Snapshot()
	respondData(w, map[string]any{
		"status":  "ok",
		"session": snap.State,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	respondData(w, s.sessions.Snapshot())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res := s.sessions.Login(r.Context(), req.Username, req.Password)
	respondResult(w, res, http.StatusUnauthorized, s.sessions.Snapshot())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	res := s.sessions.Logout(r.Context())
	respondResult(w, res, http.StatusBadGateway, nil)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	res := s.sessions.LogoutAll(r.Context())
	respondResult(w, res, http.StatusBadGateway, nil)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res := s.sessions.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword)
	respondResult(w, res, http.StatusBadRequest, nil)
}

func (s *Server) handleRefreshMenu(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.RefreshMenu(r.Context())
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "Not authenticated", nil)
	case err != nil:
		respondError(w, http.StatusBadGateway, "Failed to refresh menu", err)
	default:
		respondData(w, s.sessions.Snapshot().Menu)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	respondData(w, s.feed.State())
}

func (s *Server) handleNotificationsSeen(w http.ResponseWriter, _ *http.Request) {
	s.feed.MarkSeen()
	respondData(w, s.feed.State())
}

// handleNavigate returns the guard decision and clears the feed when the
// user lands in the reservations section.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	decision, err := s.guard.Check(s.sessions.Snapshot(), req.Path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Route check failed", err)
		return
	}
	if decision.Action == guard.Allow {
		s.feed.Visit(decision.Path)
	}
	respondData(w, decision)
}
