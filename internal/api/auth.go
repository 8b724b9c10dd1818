// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/tourdesk/internal/models"
)

// Auth and menu endpoints, relative to the base URL.
const (
	PathCSRFToken      = "/auth/csrf-token"
	PathLogin          = "/auth/login"
	PathRefresh        = "/auth/refresh"
	PathLogout         = "/auth/logout"
	PathLogoutAll      = "/auth/logout-all"
	PathMe             = "/auth/me"
	PathChangePassword = "/auth/change-password"
	PathMyMenu         = "/menus/my-menu"
)

// FetchCSRFToken always asks the backend for a new token and caches it.
func (c *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	req, _ := NewRequest(http.MethodGet, PathCSRFToken, nil, nil)
	req.SkipRefresh = true
	resp, err := c.Do(ctx, req)
	if err != nil {
		return "", err
	}
	var out models.CSRFTokenResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.CSRFToken == "" {
		return "", errors.New("csrf token response carried no token")
	}
	c.csrf.Set(out.CSRFToken)
	return out.CSRFToken, nil
}

// PrefetchCSRF refreshes the cached token ahead of a login.
func (c *Client) PrefetchCSRF(ctx context.Context) error {
	_, err := c.fetchCSRFShared(ctx, "login")
	return err
}

// Login exchanges credentials for a user and access token. The refresh
// credential arrives as a cookie and stays in the jar.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	req, err := NewRequest(http.MethodPost, PathLogin, models.LoginRequest{Username: username, Password: password}, nil)
	if err != nil {
		return nil, err
	}
	req.SkipRefresh = true
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out models.LoginResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	return &out, nil
}

// Refresh asks for a new access token using the refresh cookie. It does not
// persist the token; the pipeline does that.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	req, _ := NewRequest(http.MethodPost, PathRefresh, nil, nil)
	req.SkipRefresh = true
	resp, err := c.Do(ctx, req)
	if err != nil {
		return "", err
	}
	var out models.RefreshResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("refresh response carried no access token")
	}
	return out.AccessToken, nil
}

// Logout invalidates the current credential server-side.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Request(ctx, http.MethodPost, PathLogout, nil, nil)
	return err
}

// LogoutAll invalidates every credential of the user server-side.
func (c *Client) LogoutAll(ctx context.Context) error {
	_, err := c.Request(ctx, http.MethodPost, PathLogoutAll, nil, nil)
	return err
}

// Me returns the user the current credential belongs to.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	resp, err := c.Request(ctx, http.MethodGet, PathMe, nil, nil)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword changes the caller's password. The backend revokes existing
// credentials on success.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	_, err := c.Request(ctx, http.MethodPost, PathChangePassword, body, nil)
	return err
}

// MyMenu returns the navigation tree for the caller's role.
func (c *Client) MyMenu(ctx context.Context) ([]models.MenuItem, error) {
	resp, err := c.Request(ctx, http.MethodGet, PathMyMenu, nil, nil)
	if err != nil {
		return nil, err
	}
	var menu []models.MenuItem
	if err := resp.Decode(&menu); err != nil {
		return nil, fmt.Errorf("decode menu: %w", err)
	}
	if menu == nil {
		menu = []models.MenuItem{}
	}
	return menu, nil
}
