// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tourdesk/internal/models"
)

// ErrSessionExpired marks a terminal authentication failure. By the time it is
// returned the stored session has been cleared.
var ErrSessionExpired = errors.New("session expired")

// errSessionChanged means a refresh finished after logout or re-login. Its
// token is dropped and the session is left as the other path set it.
var errSessionChanged = errors.New("session changed during refresh")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method string
	Path   string
	Status int

	// Message is the backend's message, empty when it sent none.
	Message string
	Errors  []models.FieldError
	Body    []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// newAPIError parses the envelope if the body is JSON.
func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status, Body: body}
	var env models.Envelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Message = env.Message
		apiErr.Errors = env.Errors
	}
	return apiErr
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf returns the backend message carried by err, or "".
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func isUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// isCSRFRejection reports a 403 whose message mentions CSRF.
func isCSRFRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		return false
	}
	return strings.Contains(strings.ToUpper(apiErr.Message), "CSRF")
}
