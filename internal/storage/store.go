// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

// Package storage persists the two durable session entries, the serialized
// user and the access token, across process restarts.
//
// Both entries are written together on login and removed together on every
// logout path. The refresh credential never touches this package: it lives in
// the HTTP cookie jar.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/tourdesk/internal/models"
)

// Keys of the durable entries.
const (
	KeyUser        = "user"
	KeyAccessToken = "accessToken"
)

// Driver names accepted by Open.
const (
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// ErrNotFound is returned when an entry is absent.
var ErrNotFound = errors.New("storage: entry not found")

// ErrTokenChanged is returned by ReplaceAccessToken when the stored token is
// no longer the one the caller replaced.
var ErrTokenChanged = errors.New("storage: access token changed")

// Store is the durable key/value persistence for the session.
type Store interface {
	// User returns the persisted user or ErrNotFound.
	User(ctx context.Context) (*models.User, error)

	// AccessToken returns the persisted bearer token or ErrNotFound.
	AccessToken(ctx context.Context) (string, error)

	// Save writes the user and token in one step.
	Save(ctx context.Context, user *models.User, token string) error

	// ReplaceAccessToken swaps old for token, leaving the user untouched. It
	// fails with ErrNotFound when no session is stored and ErrTokenChanged
	// when the stored token is not old.
	ReplaceAccessToken(ctx context.Context, old, token string) error

	// Clear removes both entries. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	Close() error
}

// Open returns the store for driver. path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverBadger:
		s, err := OpenBadger(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}

// HasSession reports whether both entries are present. Restore uses it to
// decide whether there is anything to validate.
func HasSession(ctx context.Context, s Store) (bool, error) {
	if _, err := s.User(ctx); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.AccessToken(ctx); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
