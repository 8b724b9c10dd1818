// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"context"
	"sync"
)

// TokenCache holds the CSRF token shared by all requests of one client.
type TokenCache interface {
	Get() string
	Set(token string)
	Clear()
}

// MemoryTokenCache is the default TokenCache.
type MemoryTokenCache struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenCache returns an empty cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

// Get returns "" when no token is cached.
func (c *MemoryTokenCache) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Set replaces the token.
func (c *MemoryTokenCache) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Clear drops the token.
func (c *MemoryTokenCache) Clear() {
	c.Set("")
}

// CredentialStore is the part of session persistence the client touches: it
// reads the bearer token, swaps in refreshed tokens and wipes the session on
// terminal failure. It never writes the user. storage.Store satisfies it.
type CredentialStore interface {
	AccessToken(ctx context.Context) (string, error)
	ReplaceAccessToken(ctx context.Context, old, token string) error
	Clear(ctx context.Context) error
}
