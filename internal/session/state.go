// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package session

import (
	"time"

	"github.com/tomtom215/tourdesk/internal/models"
)

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Restoring
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots serialise the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State           State             `json:"state"`
	User            *models.User      `json:"user"`
	Menu            []models.MenuItem `json:"menu"`
	Loading         bool              `json:"loading"`
	IsAuthenticated bool              `json:"isAuthenticated"`

	// CredentialExpiry is the exp claim of the access token when it is a
	// JWT, zero otherwise.
	CredentialExpiry time.Time `json:"credentialExpiry,omitempty"`
}

// IsPrivileged reports whether the user holds a system role.
func (s Snapshot) IsPrivileged() bool {
	return s.User != nil && s.User.IsSystemRole
}

// RoleName returns the user's role or "".
func (s Snapshot) RoleName() string {
	if s.User == nil {
		return ""
	}
	return s.User.RoleName
}
