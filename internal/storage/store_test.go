// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/tourdesk/internal/models"
)

// storeFactories runs every test against both drivers.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"badger": func() Store {
			s, err := OpenBadger("")
			if err != nil {
				t.Fatalf("OpenBadger() error = %v", err)
			}
			return s
		},
	}
}

func testUser() *models.User {
	return &models.User{ID: "1", Username: "alice", RoleName: "Super Admin", IsSystemRole: true}
}

func TestStore_EmptyReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			if _, err := s.User(ctx); !errors.Is(err, ErrNotFound) {
				t.Errorf("User() error = %v, want ErrNotFound", err)
			}
			if _, err := s.AccessToken(ctx); !errors.Is(err, ErrNotFound) {
				t.Errorf("AccessToken() error = %v, want ErrNotFound", err)
			}
			ok, err := HasSession(ctx, s)
			if err != nil || ok {
				t.Errorf("HasSession() = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestStore_SaveAndClear(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			if err := s.Save(ctx, testUser(), "tok-1"); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := s.User(ctx)
			if err != nil {
				t.Fatalf("User() error = %v", err)
			}
			if diff := cmp.Diff(testUser(), got); diff != "" {
				t.Errorf("User mismatch (-want +got):\n%s", diff)
			}
			token, err := s.AccessToken(ctx)
			if err != nil || token != "tok-1" {
				t.Errorf("AccessToken() = %q, %v; want tok-1", token, err)
			}

			if err := s.ReplaceAccessToken(ctx, "tok-1", "tok-2"); err != nil {
				t.Fatalf("ReplaceAccessToken() error = %v", err)
			}
			if token, _ := s.AccessToken(ctx); token != "tok-2" {
				t.Errorf("AccessToken() after refresh = %q, want tok-2", token)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			ok, err := HasSession(ctx, s)
			if err != nil || ok {
				t.Errorf("HasSession() after Clear = %v, %v", ok, err)
			}

			// clearing twice is fine
			if err := s.Clear(ctx); err != nil {
				t.Errorf("second Clear() error = %v", err)
			}
		})
	}
}

func TestStore_ReplaceTokenWithoutSession(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			if err := s.ReplaceAccessToken(ctx, "", "orphan"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("ReplaceAccessToken() on empty store = %v, want ErrNotFound", err)
			}

			if err := s.Save(ctx, testUser(), "tok-1"); err != nil {
				t.Fatal(err)
			}
			if err := s.Clear(ctx); err != nil {
				t.Fatal(err)
			}
			if err := s.ReplaceAccessToken(ctx, "tok-1", "tok-2"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("ReplaceAccessToken() after Clear = %v, want ErrNotFound", err)
			}
			if _, err := s.AccessToken(ctx); !errors.Is(err, ErrNotFound) {
				t.Errorf("AccessToken() after rejected replace = %v, want ErrNotFound", err)
			}
			ok, err := HasSession(ctx, s)
			if err != nil || ok {
				t.Errorf("HasSession() = %v, %v; want false", ok, err)
			}
		})
	}
}

func TestStore_ReplaceTokenRejectsChangedToken(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			if err := s.Save(ctx, testUser(), "tok-new-login"); err != nil {
				t.Fatal(err)
			}
			if err := s.ReplaceAccessToken(ctx, "tok-1", "tok-2"); !errors.Is(err, ErrTokenChanged) {
				t.Fatalf("ReplaceAccessToken() = %v, want ErrTokenChanged", err)
			}
			if token, _ := s.AccessToken(ctx); token != "tok-new-login" {
				t.Errorf("AccessToken() = %q, want tok-new-login", token)
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := testUser()
	if err := s.Save(ctx, u, "tok"); err != nil {
		t.Fatal(err)
	}
	u.Username = "mutated"

	got, _ := s.User(ctx)
	if got.Username != "alice" {
		t.Errorf("store aliased caller's user: %q", got.Username)
	}
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "session")

	s, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	if err := s.Save(ctx, testUser(), "persisted"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenBadger(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	token, err := s.AccessToken(ctx)
	if err != nil || token != "persisted" {
		t.Errorf("AccessToken() = %q, %v; want persisted", token, err)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(DriverMemory, "")
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T", s)
	}

	if _, err := Open("redis", ""); err == nil {
		t.Error("Open(redis) should fail")
	}
}
