// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/models"
	"github.com/tomtom215/tourdesk/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envelope(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}

func failure(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}

// fakeBackend is a minimal admin backend: CSRF issuance, bearer checks and
// refresh. Tests add their own routes to mux.
type fakeBackend struct {
	mux *http.ServeMux
	srv *httptest.Server

	mu          sync.Mutex
	validTokens map[string]bool
	csrfSeq     int
	csrfValid   string

	refreshToken  string
	refreshStatus int
	refreshDelay  time.Duration

	csrfCalls    atomic.Int32
	refreshCalls atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		mux:           http.NewServeMux(),
		validTokens:   map[string]bool{},
		refreshToken:  "tok2",
		refreshStatus: http.StatusOK,
	}

	b.mux.HandleFunc("GET /api/auth/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		b.csrfCalls.Add(1)
		b.mu.Lock()
		b.csrfSeq++
		b.csrfValid = "csrf-" + strconv.Itoa(b.csrfSeq)
		token := b.csrfValid
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
	})

	b.mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		if b.refreshStatus != http.StatusOK {
			writeJSON(w, b.refreshStatus, failure("Invalid refresh token"))
			return
		}
		b.mu.Lock()
		b.validTokens[b.refreshToken] = true
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, envelope(map[string]string{"accessToken": b.refreshToken}))
	})

	b.srv = httptest.NewServer(b.mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) allow(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validTokens[token] = true
}

func (b *fakeBackend) revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.validTokens, token)
}

// authorized reports whether r carries a currently valid bearer token.
func (b *fakeBackend) authorized(r *http.Request) bool {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validTokens[h[len(prefix):]]
}

func (b *fakeBackend) csrfOK(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.csrfValid != "" && r.Header.Get("X-CSRF-Token") == b.csrfValid
}

// rotateCSRF invalidates the issued CSRF token, as a server restart would.
func (b *fakeBackend) rotateCSRF() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.csrfValid = "rotated"
}

func testAPIConfig(baseURL string) config.APIConfig {
	return config.APIConfig{
		BaseURL:     baseURL + "/api",
		Timeout:     5 * time.Second,
		AuthTimeout: 2 * time.Second,
		CSRFHeader:  "X-CSRF-Token",
		UserAgent:   "tourdesk-test",
	}
}

func newTestClient(t *testing.T, b *fakeBackend, store CredentialStore) *Client {
	t.Helper()
	c, err := New(testAPIConfig(b.srv.URL), store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func storeWithToken(t *testing.T, token string) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	user := &models.User{ID: "1", Username: "alice", RoleName: "Super Admin", IsSystemRole: true}
	if err := s.Save(context.Background(), user, token); err != nil {
		t.Fatal(err)
	}
	return s
}
