// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/tourdesk/internal/api"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/metrics"
	"github.com/tomtom215/tourdesk/internal/models"
	"github.com/tomtom215/tourdesk/internal/storage"
	"github.com/tomtom215/tourdesk/internal/validation"
)

// User-facing messages.
const (
	msgLoginFailed          = "Login failed"
	msgLoggedOut            = "Logged out successfully"
	msgLoggedOutAll         = "Logged out from all devices"
	msgLogoutAllFailed      = "Failed to logout from all devices"
	msgPasswordChanged      = "Password changed. Please login again."
	msgChangePasswordFailed = "Failed to change password"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// Manager is the authoritative session state.
type Manager struct {
	api       AuthAPI
	store     storage.Store
	navigator Navigator
	notifier  Notifier
	security  *logging.SecurityLogger

	mu         sync.Mutex
	state      State
	user       *models.User
	menu       []models.MenuItem
	loading    bool
	expiry     time.Time
	generation uint64

	subs    map[int]chan Snapshot
	nextSub int
}

// Option customises a Manager.
type Option func(*Manager)

// WithNavigator sets the redirect performed after the session expires.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) { m.navigator = n }
}

// WithNotifier sets where confirmations and errors are shown.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// New returns a manager in the Uninitialized state and registers it for the
// client's session-expired signal.
func New(authAPI AuthAPI, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		api:       authAPI,
		store:     store,
		navigator: nopNavigator{},
		notifier:  LogNotifier{},
		security:  logging.NewSecurityLogger(),
		state:     Uninitialized,
		loading:   true,
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	authAPI.OnSessionExpired(m.ExpireSession)
	return m
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// IsPrivileged reports whether the current user holds a system role.
func (m *Manager) IsPrivileged() bool {
	return m.Snapshot().IsPrivileged()
}

// Subscribe returns a channel that always holds the latest snapshot, starting
// with the current one. Slow readers skip intermediate states. cancel closes
// the channel.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- m.snapshotLocked()
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Restore validates a persisted session against the backend. It only acts
// from Uninitialized and always ends with Loading false.
func (m *Manager) Restore(ctx context.Context) {
	ctx = logging.EnsureCorrelationID(ctx)

	m.mu.Lock()
	if m.state != Uninitialized {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(Restoring)
	gen := m.generation
	m.mu.Unlock()

	defer m.finishLoading()

	has, err := storage.HasSession(ctx, m.store)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to read persisted session")
	}
	if !has {
		m.mu.Lock()
		if m.generation == gen {
			m.setStateLocked(Unauthenticated)
		}
		m.mu.Unlock()
		return
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		logging.Ctx(ctx).Info().Err(err).Msg("Persisted session is no longer valid")
		m.mu.Lock()
		if m.generation == gen {
			m.clearLocked(ctx)
		}
		m.mu.Unlock()
		return
	}

	token, _ := m.store.AccessToken(ctx)
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		logging.Ctx(ctx).Info().Msg("Session changed during restore, discarding result")
		return
	}
	m.user = user
	m.expiry = credentialExpiry(token)
	m.generation++
	gen = m.generation
	m.setStateLocked(Authenticated)
	m.mu.Unlock()

	logging.Ctx(ctx).Info().Str("user", user.Username).Str("role", user.RoleName).Msg("Session restored")
	m.loadMenu(ctx, gen)
}

// Login authenticates, persists user and token together, then loads the menu.
func (m *Manager) Login(ctx context.Context, username, password string) models.Result {
	ctx = logging.EnsureCorrelationID(ctx)

	form := models.LoginRequest{Username: username, Password: password}
	if err := validation.ValidateStruct(&form); err != nil {
		return m.loginFailed(ctx, username, err.Error())
	}

	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	if err := m.api.PrefetchCSRF(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("CSRF prefetch failed")
		return m.loginFailed(ctx, username, messageOr(err, msgLoginFailed))
	}

	resp, err := m.api.Login(ctx, username, password)
	if err != nil {
		logging.Ctx(ctx).Info().Err(err).Str("user", username).Msg("Login rejected")
		return m.loginFailed(ctx, username, messageOr(err, msgLoginFailed))
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		logging.Ctx(ctx).Warn().Msg("Session changed during login, discarding result")
		return m.loginFailed(ctx, username, msgLoginFailed)
	}
	if err := m.store.Save(ctx, &resp.User, resp.AccessToken); err != nil {
		m.mu.Unlock()
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist session")
		return m.loginFailed(ctx, username, msgLoginFailed)
	}
	user := resp.User
	m.user = &user
	m.menu = nil
	m.expiry = credentialExpiry(resp.AccessToken)
	m.generation++
	gen = m.generation
	m.setStateLocked(Authenticated)
	m.mu.Unlock()

	logging.Ctx(ctx).Info().Str("user", user.Username).Str("role", user.RoleName).Msg("Logged in")
	m.security.LogLoginSuccess(string(user.ID), user.Username, user.RoleName)
	m.loadMenu(ctx, gen)
	m.notifier.Success(fmt.Sprintf("Welcome back, %s!", user.Username))
	return models.OK()
}

func (m *Manager) loginFailed(ctx context.Context, username, msg string) models.Result {
	m.mu.Lock()
	if m.state != Authenticated {
		m.setStateLocked(Unauthenticated)
	}
	m.mu.Unlock()
	logging.Ctx(ctx).Debug().Str("reason", msg).Msg("Login failed")
	m.security.LogLoginFailure(username, msg)
	m.notifier.Error(msg)
	return models.Failed(msg)
}

// Logout clears the local session whether or not the server call succeeds.
func (m *Manager) Logout(ctx context.Context) models.Result {
	ctx = logging.EnsureCorrelationID(ctx)
	userID := m.userID()
	err := m.api.Logout(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Logout request failed, clearing local session anyway")
	}
	m.clear(ctx)
	m.security.LogLogout(userID, err == nil)
	m.notifier.Success(msgLoggedOut)
	return models.OK()
}

// LogoutAll revokes every credential server-side. The local session is only
// cleared when that succeeds.
func (m *Manager) LogoutAll(ctx context.Context) models.Result {
	ctx = logging.EnsureCorrelationID(ctx)
	userID := m.userID()
	if err := m.api.LogoutAll(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Logout from all devices failed")
		m.security.LogLogoutAll(userID, false, err.Error())
		m.notifier.Error(msgLogoutAllFailed)
		return models.Failed(msgLogoutAllFailed)
	}
	m.clear(ctx)
	m.security.LogLogoutAll(userID, true, "")
	m.notifier.Success(msgLoggedOutAll)
	return models.OK()
}

// ChangePassword changes the password and, on success, ends the session since
// the server revoked the current credentials.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) models.Result {
	ctx = logging.EnsureCorrelationID(ctx)

	form := models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	if err := validation.ValidateStruct(&form); err != nil {
		m.notifier.Error(err.Error())
		return models.Failed(err.Error())
	}

	userID := m.userID()
	if err := m.api.ChangePassword(ctx, current, next); err != nil {
		msg := messageOr(err, msgChangePasswordFailed)
		logging.Ctx(ctx).Info().Err(err).Msg("Password change rejected")
		m.security.LogPasswordChange(userID, false, msg)
		m.notifier.Error(msg)
		return models.Failed(msg)
	}
	m.clear(ctx)
	m.security.LogPasswordChange(userID, true, "")
	m.notifier.Success(msgPasswordChanged)
	return models.OK()
}

// RefreshMenu re-fetches the menu without touching authentication state. On
// failure the menu becomes empty and the error is returned.
func (m *Manager) RefreshMenu(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Authenticated {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	gen := m.generation
	m.mu.Unlock()
	return m.loadMenu(ctx, gen)
}

// userID returns the signed-in user's id, or "".
func (m *Manager) userID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ""
	}
	return string(m.user.ID)
}

// ExpireSession is the terminal authentication path: wipe everything and send
// the user to login. The API client calls it after a failed refresh.
func (m *Manager) ExpireSession(ctx context.Context) {
	logging.Ctx(ctx).Warn().Msg("Session expired, redirecting to login")
	m.clear(ctx)
	m.navigator.ToLogin(ctx)
}

// loadMenu fetches the menu and stores it if gen is still current.
func (m *Manager) loadMenu(ctx context.Context, gen uint64) error {
	menu, err := m.api.MyMenu(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to fetch menu")
		menu = []models.MenuItem{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen || m.state != Authenticated {
		return err
	}
	m.menu = menu
	m.publishLocked()
	return err
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(ctx)
}

// clearLocked wipes memory and storage. Storage errors are logged only.
func (m *Manager) clearLocked(ctx context.Context) {
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to clear persisted session")
	}
	m.user = nil
	m.menu = nil
	m.expiry = time.Time{}
	m.generation++
	m.setStateLocked(Unauthenticated)
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Restoring {
		m.setStateLocked(Unauthenticated)
	}
	m.loading = false
	m.publishLocked()
}

// setStateLocked records the transition and publishes. Loading ends with
// any transition that does not involve Restoring, so a Login or expiry that
// runs before Restore settles it too.
func (m *Manager) setStateLocked(to State) {
	from := m.state
	if from != to {
		metrics.RecordSessionTransition(from.String(), to.String())
		logging.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Session state changed")
	}
	if from != Restoring && to != Restoring {
		m.loading = false
	}
	m.state = to
	m.publishLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:            m.state,
		Loading:          m.loading,
		IsAuthenticated:  m.state == Authenticated && m.user != nil,
		CredentialExpiry: m.expiry,
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	if m.menu != nil {
		snap.Menu = make([]models.MenuItem, len(m.menu))
		copy(snap.Menu, m.menu)
	}
	return snap
}

// publishLocked replaces the buffered value of every subscriber. Holding mu
// guarantees the buffer has room after the drain.
func (m *Manager) publishLocked() {
	if len(m.subs) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// messageOr returns the backend message of err, or fallback.
func messageOr(err error, fallback string) string {
	if msg := api.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}

// credentialExpiry reads the exp claim without verifying the signature; the
// value is informational only.
func credentialExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
