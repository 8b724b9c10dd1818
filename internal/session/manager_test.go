// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/tourdesk/internal/api"
	"github.com/tomtom215/tourdesk/internal/models"
	"github.com/tomtom215/tourdesk/internal/storage"
)

// fakeAPI scripts AuthAPI responses. Hooks run before the canned result so
// tests can block or interleave.
type fakeAPI struct {
	mu sync.Mutex

	user     *models.User
	meErr    error
	meHook   func()
	menu     []models.MenuItem
	menuErr  error
	loginErr error
	loginTok string

	logoutErr    error
	logoutAllErr error
	changeErr    error

	csrfCalls   atomic.Int32
	loginCalls  atomic.Int32
	logoutCalls atomic.Int32
	menuCalls   atomic.Int32

	expired []func(ctx context.Context)
}

func (f *fakeAPI) PrefetchCSRF(context.Context) error {
	f.csrfCalls.Add(1)
	return nil
}

func (f *fakeAPI) Login(_ context.Context, username, _ string) (*models.LoginResponse, error) {
	f.loginCalls.Add(1)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	tok := f.loginTok
	if tok == "" {
		tok = "tok1"
	}
	u := models.User{ID: "7", Username: username, RoleName: "Agency Admin"}
	if f.user != nil {
		u = *f.user
	}
	return &models.LoginResponse{User: u, AccessToken: tok}, nil
}

func (f *fakeAPI) Logout(context.Context) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func (f *fakeAPI) LogoutAll(context.Context) error { return f.logoutAllErr }

func (f *fakeAPI) Me(context.Context) (*models.User, error) {
	if f.meHook != nil {
		f.meHook()
	}
	if f.meErr != nil {
		return nil, f.meErr
	}
	u := *f.user
	return &u, nil
}

func (f *fakeAPI) ChangePassword(context.Context, string, string) error { return f.changeErr }

func (f *fakeAPI) MyMenu(context.Context) ([]models.MenuItem, error) {
	f.menuCalls.Add(1)
	if f.menuErr != nil {
		return nil, f.menuErr
	}
	return f.menu, nil
}

func (f *fakeAPI) OnSessionExpired(fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, fn)
}

func (f *fakeAPI) fireExpired(ctx context.Context) {
	f.mu.Lock()
	handlers := append([]func(context.Context){}, f.expired...)
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(ctx)
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	success []string
	errors  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

var (
	alice = &models.User{ID: "1", Username: "alice", Email: "alice@example.com", RoleName: "Super Admin", IsSystemRole: true}
	menu  = []models.MenuItem{{ID: "1", Name: "Dashboard", Path: "/dashboard"}}
)

func newTestManager(t *testing.T, fake *fakeAPI) (*Manager, storage.Store, *recordingNotifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	notes := &recordingNotifier{}
	return New(fake, store, WithNotifier(notes)), store, notes
}

func TestRestoreWithValidSession(t *testing.T) {
	fake := &fakeAPI{user: alice, menu: menu}
	m, store, _ := newTestManager(t, fake)
	ctx := context.Background()
	if err := store.Save(ctx, alice, "tok1"); err != nil {
		t.Fatal(err)
	}

	m.Restore(ctx)

	snap := m.Snapshot()
	if snap.State != Authenticated || !snap.IsAuthenticated || snap.Loading {
		t.Fatalf("snapshot = %+v", snap)
	}
	if diff := cmp.Diff(alice, snap.User); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(menu, snap.Menu); diff != "" {
		t.Errorf("menu mismatch (-want +got):\n%s", diff)
	}
	if !m.IsPrivileged() {
		t.Error("system role should be privileged")
	}
}

func TestRestoreWithoutSession(t *testing.T) {
	fake := &fakeAPI{user: alice}
	m, _, _ := newTestManager(t, fake)

	m.Restore(context.Background())

	snap := m.Snapshot()
	if snap.State != Unauthenticated || snap.IsAuthenticated || snap.Loading {
		t.Fatalf("snapshot = %+v", snap)
	}
	if fake.menuCalls.Load() != 0 {
		t.Error("menu must not be fetched without a session")
	}
}

func TestRestoreWithRejectedSessionClearsStorage(t *testing.T) {
	fake := &fakeAPI{meErr: &api.APIError{Status: http.StatusUnauthorized}}
	m, store, _ := newTestManager(t, fake)
	ctx := context.Background()
	_ = store.Save(ctx, alice, "stale")

	m.Restore(ctx)

	if got := m.Snapshot(); got.State != Unauthenticated || got.User != nil || got.Loading {
		t.Fatalf("snapshot = %+v", got)
	}
	if has, _ := storage.HasSession(ctx, store); has {
		t.Error("stored session should be cleared")
	}
}

func TestRestoreOnlyRunsOnce(t *testing.T) {
	fake := &fakeAPI{user: alice, menu: menu}
	m, store, _ := newTestManager(t, fake)
	ctx := context.Background()
	_ = store.Save(ctx, alice, "tok1")

	m.Restore(ctx)
	m.Restore(ctx)

	if got := fake.menuCalls.Load(); got != 1 {
		t.Errorf("menu calls = %d, want 1", got)
	}
}

func TestRestoreMenuFailureLeavesEmptyMenu(t *testing.T) {
	fake := &fakeAPI{user: alice, menuErr: errors.New("boom")}
	m, store, _ := newTestManager(t, fake)
	ctx := context.Background()
	_ = store.Save(ctx, alice, "tok1")

	m.Restore(ctx)

	snap := m.Snapshot()
	if snap.State != Authenticated {
		t.Fatalf("state = %s", snap.State)
	}
	if snap.Menu == nil || len(snap.Menu) != 0 {
		t.Errorf("menu = %#v, want empty", snap.Menu)
	}
}

func TestLogoutDuringRestoreWins(t *testing.T) {
	fake := &fakeAPI{user: alice, menu: menu}
	m, store, _ := newTestManager(t, fake)
	ctx := context.Background()
	_ = store.Save(ctx, alice, "tok1")

	fake.meHook = func() { m.Logout(ctx) }
	m.Restore(ctx)

	snap := m.Snapshot()
	if snap.State != Unauthenticated || snap.User != nil || snap.Loading {
		t.Fatalf("snapshot = %+v", snap)
	}
	if has, _ := storage.HasSession(ctx, store); has {
		t.Error("logout must leave storage empty")
	}
}

func TestLoginSuccess(t *testing.T) {
	fake := &fakeAPI{user: alice, menu: menu}
	m, store, notes := newTestManager(t, fake)
	ctx := context.Background()
	m.Restore(ctx)

	res := m.Login(ctx, "alice", "secret")

	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if fake.csrfCalls.Load() != 1 {
		t.Error("login must prefetch a CSRF token")
	}
	snap := m.Snapshot()
	if snap.State != Authenticated || snap.User.Username != "alice" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if diff := cmp.Diff(menu, snap.Menu); diff != "" {
		t.Errorf("menu mismatch (-want +got):\n%s", diff)
	}
	user, err := store.User(ctx)
	if err != nil || user.Username != "alice" {
		t.Errorf("stored user = %v, %v", user, err)
	}
	if tok, _ := store.AccessToken(ctx); tok != "tok1" {
		t.Errorf("stored token = %q", tok)
	}
	if diff := cmp.Diff([]string{"Welcome back, alice!"}, notes.success); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}

func TestLoginBeforeRestoreEndsLoading(t *testing.T) {
	fake := &fakeAPI{user: alice, menu: menu}
	m, _, _ := newTestManager(t, fake)
	ctx := context.Background()

	if !m.Snapshot().Loading {
		t.Fatal("a new manager should be loading")
	}
	if res := m.Login(ctx, "alice", "secret"); !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if snap := m.Snapshot(); snap.State != Authenticated || snap.Loading {
		t.Fatalf("snapshot after login = %+v", snap)
	}

	// Restore is a no-op once the session has left Uninitialized.
	m.Restore(ctx)
	if snap := m.Snapshot(); snap.State != Authenticated || snap.Loading {
		t.Errorf("snapshot after late restore = %+v", snap)
	}
}

func TestFailedLoginBeforeRestoreEndsLoading(t *testing.T) {
	fake := &fakeAPI{loginErr: &api.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	m, _, _ := newTestManager(t, fake)

	m.Login(context.Background(), "alice", "wrong")

	if snap := m.Snapshot(); snap.State != Unauthenticated || snap.Loading {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLoginFailureUsesBackendMessage(t *testing.T) {
	fake := &fakeAPI{loginErr: &api.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	m, store, notes := newTestManager(t, fake)
	ctx := context.Background()

	res := m.Login(ctx, "alice", "wrong")

	if diff := cmp.Diff(models.Failed("Invalid credentials"), res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if got := m.Snapshot(); got.State != Unauthenticated || got.IsAuthenticated {
		t.Errorf("snapshot = %+v", got)
	}
	if has, _ := storage.HasSession(ctx, store); has {
		t.Error("failed login must not persist anything")
	}
	if diff := cmp.Diff([]string{"Invalid credentials"}, notes.errors); diff != "" {
		t.Errorf("errors (-want +got):\n%s", diff)
	}
}

func TestLoginFailureFallbackMessage(t *testing.T) {
	fake := &fakeAPI{loginErr: errors.New("dial tcp: connection refused")}
	m, _, _ := newTestManager(t, fake)

	res := m.Login(context.Background(), "alice", "secret")

	if res.Success || res.Error != "Login failed" {
		t.Errorf("result = %+v", res)
	}
}

func TestLoginValidatesInput(t *testing.T) {
	fake := &fakeAPI{}
	m, _, _ := newTestManager(t, fake)

	res := m.Login(context.Background(), "", "")

	if res.Success {
		t.Fatal("empty credentials should fail")
	}
	if fake.loginCalls.Load() != 0 {
		t.Error("invalid input must not reach the backend")
	}
}

func TestLoginRecordsCredentialExpiry(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	fake := &fakeAPI{loginTok: tok}
	m, _, _ := newTestManager(t, fake)

	m.Login(context.Background(), "alice", "secret")

	if got := m.Snapshot().CredentialExpiry; !got.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got, exp)
	}
}

func TestLogoutClearsEvenWhenServerFails(t *testing.T) {
	fake := &fakeAPI{user: alice, logoutErr: errors.New("network down")}
	m, store, notes := newTestManager(t, fake)
	ctx := context.Background()
	m.Login(ctx, "alice", "secret")

	res := m.Logout(ctx)

	if !res.Success {
		t.Errorf("result = %+v", res)
	}
	if got := m.Snapshot(); got.State != Unauthenticated || got.User != nil || got.Menu != nil {
		t.Errorf("snapshot = %+v", got)
	}
	if has, _ := storage.HasSession(ctx, store); has {
		t.Error("storage should be empty")
	}
	if notes.success[len(notes.success)-1] != "Logged out successfully" {
		t.Errorf("notifications = %v", notes.success)
	}
}

func TestLogoutAllFailureKeepsSession(t *testing.T) {
	fake := &fakeAPI{user: alice, logoutAllErr: errors.New("boom")}
	m, store, notes := newTestManager(t, fake)
	ctx := context.Background()
	m.Login(ctx, "alice", "secret")

	res := m.LogoutAll(ctx)

	if diff := cmp.Diff(models.Failed("Failed to logout from all devices"), res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if got := m.Snapshot(); got.State != Authenticated {
		t.Errorf("state = %s, want authenticated", got.State)
	}
	if has, _ := storage.HasSession(ctx, store); !has {
		t.Error("session should still be stored")
	}
	if len(notes.errors) != 1 {
		t.Errorf("errors = %v", notes.errors)
	}
}

func TestLogoutAllSuccess(t *testing.T) {
	fake := &fakeAPI{user: alice}
	m, _, notes := newTestManager(t, fake)
	ctx := context.Background()
	m.Login(ctx, "alice", "secret")

	if res := m.LogoutAll(ctx); !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if got := m.Snapshot(); got.State != Unauthenticated {
		t.Errorf("state = %s", got.State)
	}
	if notes.success[len(notes.success)-1] != "Logged out from all devices" {
		t.Errorf("notifications = %v", notes.success)
	}
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		next      string
		apiErr    error
		wantOK    bool
		wantError string
		wantState State
	}{
		{name: "success", current: "old", next: "new", wantOK: true, wantState: Unauthenticated},
		{name: "backend message", current: "old", next: "new", apiErr: &api.APIError{Status: 400, Message: "Current password is incorrect"}, wantError: "Current password is incorrect", wantState: Authenticated},
		{name: "fallback message", current: "old", next: "new", apiErr: errors.New("timeout"), wantError: "Failed to change password", wantState: Authenticated},
		{name: "same password", current: "same", next: "same", wantState: Authenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{user: alice, changeErr: tt.apiErr}
			m, _, _ := newTestManager(t, fake)
			ctx := context.Background()
			m.Login(ctx, "alice", "secret")

			res := m.ChangePassword(ctx, tt.current, tt.next)

			if res.Success != tt.wantOK {
				t.Fatalf("result = %+v", res)
			}
			if tt.wantError != "" && res.Error != tt.wantError {
				t.Errorf("error = %q, want %q", res.Error, tt.wantError)
			}
			if got := m.Snapshot().State; got != tt.wantState {
				t.Errorf("state = %s, want %s", got, tt.wantState)
			}
		})
	}
}

func TestRefreshMenu(t *testing.T) {
	fake := &fakeAPI{user: alice}
	m, _, _ := newTestManager(t, fake)
	ctx := context.Background()

	if err := m.RefreshMenu(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}

	m.Login(ctx, "alice", "secret")
	fake.menu = menu
	if err := m.RefreshMenu(ctx); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(menu, m.Snapshot().Menu); diff != "" {
		t.Errorf("menu (-want +got):\n%s", diff)
	}

	fake.menuErr = errors.New("boom")
	if err := m.RefreshMenu(ctx); err == nil {
		t.Fatal("expected error")
	}
	if got := m.Snapshot(); len(got.Menu) != 0 || got.State != Authenticated {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestSessionExpiryRedirectsToLogin(t *testing.T) {
	fake := &fakeAPI{user: alice}
	store := storage.NewMemoryStore()
	var redirects atomic.Int32
	m := New(fake, store, WithNavigator(NavigatorFunc(func(context.Context) { redirects.Add(1) })))
	ctx := context.Background()
	m.Login(ctx, "alice", "secret")

	fake.fireExpired(ctx)

	if got := m.Snapshot(); got.State != Unauthenticated || got.User != nil {
		t.Errorf("snapshot = %+v", got)
	}
	if redirects.Load() != 1 {
		t.Errorf("redirects = %d, want 1", redirects.Load())
	}
	if has, _ := storage.HasSession(ctx, store); has {
		t.Error("storage should be empty")
	}
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	fake := &fakeAPI{user: alice, menu: menu}
	m, _, _ := newTestManager(t, fake)
	ch, cancel := m.Subscribe()
	defer cancel()

	first := <-ch
	if first.State != Uninitialized || !first.Loading {
		t.Fatalf("first = %+v", first)
	}

	m.Restore(context.Background())
	m.Login(context.Background(), "alice", "secret")

	latest := <-ch
	if latest.State != Authenticated || len(latest.Menu) != 1 || latest.Loading {
		t.Errorf("latest = %+v", latest)
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	fake := &fakeAPI{user: alice, menu: menu}
	m, _, _ := newTestManager(t, fake)
	m.Login(context.Background(), "alice", "secret")

	snap := m.Snapshot()
	snap.User.Username = "mallory"
	snap.Menu[0].Name = "changed"

	again := m.Snapshot()
	if again.User.Username != "alice" || again.Menu[0].Name != "Dashboard" {
		t.Errorf("internal state mutated: %+v", again)
	}
}
