// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package session

import (
	"context"

	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/models"
)

// AuthAPI is the slice of the API client the manager needs. *api.Client
// satisfies it.
type AuthAPI interface {
	PrefetchCSRF(ctx context.Context) error
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	ChangePassword(ctx context.Context, current, next string) error
	MyMenu(ctx context.Context) ([]models.MenuItem, error)
	OnSessionExpired(fn func(ctx context.Context))
}

// Navigator performs the hard redirect to the login entry point after the
// session was wiped.
type Navigator interface {
	ToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

// ToLogin calls f.
func (f NavigatorFunc) ToLogin(ctx context.Context) { f(ctx) }

// Notifier shows short user-facing confirmations and errors.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the log. It is the default.
type LogNotifier struct{}

// Success logs at info.
func (LogNotifier) Success(msg string) {
	logging.Info().Str("notification", "success").Msg(msg)
}

// Error logs at warn.
func (LogNotifier) Error(msg string) {
	logging.Warn().Str("notification", "error").Msg(msg)
}

type nopNavigator struct{}

func (nopNavigator) ToLogin(context.Context) {}
