// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is an authentication or session event worth auditing.
type SecurityEvent struct {
	// Event is the type of event (e.g., "login_success", "logout", "token_refresh").
	Event string
	// UserID is the user's identifier (if known).
	UserID string
	// Username is the user's username (if known).
	Username string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
	// Details contains additional details, sanitized by key.
	Details map[string]string
}

// SecurityLogger writes session lifecycle events with identifiers and
// credentials masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger logs through the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("security")}
}

// NewSecurityLoggerWithLogger logs through logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "security").Logger()}
}

// LogEvent logs event with sensitive fields masked.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(event.UserID))
	}
	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// LogLoginSuccess logs a successful login.
func (l *SecurityLogger) LogLoginSuccess(userID, username, role string) {
	l.LogEvent(&SecurityEvent{
		Event:    "login_success",
		UserID:   userID,
		Username: username,
		Success:  true,
		Details:  map[string]string{"role": role},
	})
}

// LogLoginFailure logs a rejected login.
func (l *SecurityLogger) LogLoginFailure(username, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:    "login_failure",
		Username: username,
		Error:    reason,
	})
}

// LogLogout logs a logout. serverAck is false when the backend call failed
// and only the local session was cleared.
func (l *SecurityLogger) LogLogout(userID string, serverAck bool) {
	ack := "false"
	if serverAck {
		ack = "true"
	}
	l.LogEvent(&SecurityEvent{
		Event:   "logout",
		UserID:  userID,
		Success: true,
		Details: map[string]string{"server_ack": ack},
	})
}

// LogLogoutAll logs a logout from every device.
func (l *SecurityLogger) LogLogoutAll(userID string, success bool, errMsg string) {
	l.LogEvent(&SecurityEvent{
		Event:   "logout_all",
		UserID:  userID,
		Success: success,
		Error:   errMsg,
	})
}

// LogPasswordChange logs a password change attempt.
func (l *SecurityLogger) LogPasswordChange(userID string, success bool, errMsg string) {
	l.LogEvent(&SecurityEvent{
		Event:   "password_change",
		UserID:  userID,
		Success: success,
		Error:   errMsg,
	})
}

// LogTokenRefresh logs a refresh of the access token.
func (l *SecurityLogger) LogTokenRefresh(success bool, errMsg string) {
	l.LogEvent(&SecurityEvent{
		Event:   "token_refresh",
		Success: success,
		Error:   errMsg,
	})
}

// LogSessionExpired logs the forced end of a session after a failed refresh.
func (l *SecurityLogger) LogSessionExpired(reason string) {
	l.LogEvent(&SecurityEvent{
		Event: "session_expired",
		Error: reason,
	})
}

// LogCSRFRejected logs a CSRF rejection that triggered a token re-fetch.
func (l *SecurityLogger) LogCSRFRejected(method, path string) {
	l.LogEvent(&SecurityEvent{
		Event:   "csrf_rejected",
		Details: map[string]string{"method": method, "path": path},
	})
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks a user ID for privacy.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeUsername keeps the first 2 characters.
// Example: "johndoe" -> "jo***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeEmail masks the local part.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

var sensitiveErrorWords = []string{
	"password",
	"secret",
	"token",
	"bearer",
	"authorization",
	"cookie",
}

// SanitizeError replaces messages that may echo a credential.
func SanitizeError(err string) string {
	lower := strings.ToLower(err)
	for _, w := range sensitiveErrorWords {
		if strings.Contains(lower, w) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

var sensitiveKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"csrf_token":    true,
	"password":      true,
	"authorization": true,
	"bearer":        true,
	"cookie":        true,
}

// SanitizeValue masks value when key names a credential.
func SanitizeValue(key, value string) string {
	if sensitiveKeys[strings.ToLower(key)] {
		return SanitizeToken(value)
	}
	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}
	return value
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
