// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package storage

import (
	"context"
	"sync"

	"github.com/tomtom215/tourdesk/internal/models"
)

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	user  *models.User
	token string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// User implements Store.
func (s *MemoryStore) User(_ context.Context) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, ErrNotFound
	}
	u := *s.user
	return &u, nil
}

// AccessToken implements Store.
func (s *MemoryStore) AccessToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotFound
	}
	return s.token, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, user *models.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.user = &u
	s.token = token
	return nil
}

// ReplaceAccessToken implements Store.
func (s *MemoryStore) ReplaceAccessToken(_ context.Context, old, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ErrNotFound
	}
	if s.token != old {
		return ErrTokenChanged
	}
	s.token = token
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
