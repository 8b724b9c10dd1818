// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// ID is a backend identifier. Numbers and strings both decode into it.
type ID string

// UnmarshalJSON accepts 42, "42" and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// User is the authenticated principal. It is persisted as JSON under the
// "user" key and replaced wholesale by the /auth/me response on restore.
type User struct {
	ID           ID     `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	RoleName     string `json:"roleName"`
	IsSystemRole bool   `json:"isSystemRole"`
}

// MenuItem is one entry of the navigation tree returned by /menus/my-menu.
type MenuItem struct {
	ID       ID         `json:"id"`
	Name     string     `json:"name"`
	Path     string     `json:"path,omitempty"`
	Icon     string     `json:"icon,omitempty"`
	ParentID *ID        `json:"parentId,omitempty"`
	Children []MenuItem `json:"children,omitempty"`
}

// Walk calls fn for every item depth first. Returning false stops the walk.
func Walk(items []MenuItem, fn func(item *MenuItem, depth int) bool) {
	walk(items, 0, fn)
}

func walk(items []MenuItem, depth int, fn func(*MenuItem, int) bool) bool {
	for i := range items {
		if !fn(&items[i], depth) {
			return false
		}
		if !walk(items[i].Children, depth+1, fn) {
			return false
		}
	}
	return true
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// RefreshResponse is the data of a successful refresh.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,nefield=CurrentPassword"`
}

// CSRFTokenResponse is the top-level body of GET /auth/csrf-token.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}
