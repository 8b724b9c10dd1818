// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/models"
	"github.com/tomtom215/tourdesk/internal/session"
)

type fakeSessions struct {
	ch chan session.Snapshot
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{ch: make(chan session.Snapshot, 16)}
}

func (f *fakeSessions) Subscribe() (<-chan session.Snapshot, func()) {
	return f.ch, func() {}
}

type fakeCredentials struct{ token string }

func (f fakeCredentials) AccessToken(context.Context) (string, error) {
	return f.token, nil
}

type fakeSubscription struct {
	events chan models.NewReservationEvent
	closed atomic.Bool
	once   sync.Once
}

func (s *fakeSubscription) Events() <-chan models.NewReservationEvent { return s.events }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.events)
	})
	return nil
}

type fakeTransport struct {
	mu     sync.Mutex
	tokens []string
	subs   []*fakeSubscription
	err    error
}

func (f *fakeTransport) Dial(_ context.Context, token string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSubscription{events: make(chan models.NewReservationEvent)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeTransport) dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

func (f *fakeTransport) sub(i int) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

type fakeDesktop struct {
	mu        sync.Mutex
	perm      Permission
	requests  int
	titles    []string
	bodies    []string
	notifyErr error
}

func (d *fakeDesktop) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm
}

func (d *fakeDesktop) RequestPermission(context.Context) Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests++
	d.perm = PermissionGranted
	return d.perm
}

func (d *fakeDesktop) Notify(title, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles = append(d.titles, title)
	d.bodies = append(d.bodies, body)
	return d.notifyErr
}

type failingAudio struct{ plays atomic.Int32 }

func (a *failingAudio) Play(context.Context) error {
	a.plays.Add(1)
	return errors.New("no audio device")
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func signedIn(id, role string) session.Snapshot {
	return session.Snapshot{
		State:           session.Authenticated,
		IsAuthenticated: true,
		User:            &models.User{ID: models.ID(id), Username: "u" + id, RoleName: role},
	}
}

var signedOutSnap = session.Snapshot{State: session.Unauthenticated}

type channelHarness struct {
	channel   *Channel
	sessions  *fakeSessions
	transport *fakeTransport
	desktop   *fakeDesktop
	audio     *failingAudio
	feed      *Feed
	done      chan error
}

func startChannel(t *testing.T) *channelHarness {
	t.Helper()
	h := &channelHarness{
		sessions:  newFakeSessions(),
		transport: &fakeTransport{},
		desktop:   &fakeDesktop{},
		audio:     &failingAudio{},
		feed:      NewFeed("Dashboard"),
		done:      make(chan error, 1),
	}
	cfg := config.RealtimeConfig{AllowedRoles: []string{"Super Admin", "Agency Admin"}}
	notify := config.NotificationsConfig{Desktop: true, Sound: true, DefaultTitle: "Dashboard"}
	h.channel = NewChannel(cfg, notify, h.sessions, fakeCredentials{token: "tok1"}, h.transport, h.feed,
		WithDesktop(h.desktop), WithAudio(h.audio))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- h.channel.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("channel did not stop")
		}
	})
	return h
}

func TestChannel_RoleGating(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedOutSnap
	h.sessions.ch <- signedIn("1", "Guide")
	h.sessions.ch <- signedIn("2", "")
	// Snapshots are handled in order, so once this one dials the earlier
	// ones have been processed.
	h.sessions.ch <- signedIn("3", "Agency Admin")

	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })
	if diff := cmp.Diff([]string{"tok1"}, h.transport.tokens); diff != "" {
		t.Errorf("dial tokens (-want +got):\n%s", diff)
	}
}

func TestChannel_SingleSubscriptionPerUser(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedIn("1", "Super Admin")
	h.sessions.ch <- signedIn("1", "Super Admin")
	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })

	h.sessions.ch <- signedOutSnap
	eventually(t, "close on logout", func() bool { return h.transport.sub(0).closed.Load() })

	h.sessions.ch <- signedIn("1", "Super Admin")
	eventually(t, "redial", func() bool { return h.transport.dials() == 2 })

	h.sessions.ch <- signedIn("1", "Guide")
	eventually(t, "close on role change", func() bool { return h.transport.sub(1).closed.Load() })
	if got := h.transport.dials(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
}

func TestChannel_EventHandling(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedIn("1", "Agency Admin")
	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })
	sub := h.transport.sub(0)

	sub.events <- models.NewReservationEvent{Reservation: models.Reservation{CustomerName: "Hana"}}
	sub.events <- models.NewReservationEvent{}
	eventually(t, "two events", func() bool { return h.feed.Count() == 2 })

	h.desktop.mu.Lock()
	defer h.desktop.mu.Unlock()
	if h.desktop.requests != 1 {
		t.Errorf("permission requests = %d, want 1", h.desktop.requests)
	}
	if diff := cmp.Diff([]string{"New Reservation", "New Reservation"}, h.desktop.titles); diff != "" {
		t.Errorf("titles (-want +got):\n%s", diff)
	}
	wantBodies := []string{"New reservation from Hana", "New reservation from a customer"}
	if diff := cmp.Diff(wantBodies, h.desktop.bodies); diff != "" {
		t.Errorf("bodies (-want +got):\n%s", diff)
	}
	if got := h.audio.plays.Load(); got != 2 {
		t.Errorf("audio plays = %d, want 2", got)
	}
	if got := h.feed.Title(); got != "(2) New Reservations - Dashboard" {
		t.Errorf("title = %q", got)
	}
}

func TestChannel_DialFailureIsLoggedOnly(t *testing.T) {
	h := startChannel(t)
	h.transport.mu.Lock()
	h.transport.err = ErrHandshakeRejected
	h.transport.mu.Unlock()

	h.sessions.ch <- signedIn("1", "Agency Admin")
	eventually(t, "dial attempt", func() bool { return h.transport.dials() == 1 })

	h.transport.mu.Lock()
	h.transport.err = nil
	h.transport.mu.Unlock()

	h.sessions.ch <- signedIn("2", "Agency Admin")
	eventually(t, "second dial", func() bool { return h.transport.dials() == 2 })

	select {
	case err := <-h.done:
		t.Fatalf("channel stopped: %v", err)
	default:
	}
}

func TestChannel_SubscriptionEnded(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedIn("1", "Agency Admin")
	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })
	_ = h.transport.sub(0).Close()

	// Same user, same role: the transport owns reconnects, so no redial.
	h.sessions.ch <- signedIn("1", "Agency Admin")
	h.sessions.ch <- signedIn("2", "Agency Admin")
	eventually(t, "dial for new user", func() bool { return h.transport.dials() == 2 })
}

func TestChannelAllowed(t *testing.T) {
	c := NewChannel(config.RealtimeConfig{AllowedRoles: []string{"Super Admin"}}, config.NotificationsConfig{},
		newFakeSessions(), fakeCredentials{}, &fakeTransport{}, NewFeed(""))
	if !c.Allowed("Super Admin") || c.Allowed("Agency Admin") || c.Allowed("") {
		t.Error("Allowed() mismatch")
	}
	if c.String() != "realtime-channel" {
		t.Errorf("String() = %q", c.String())
	}
}

func deliver(t *testing.T, sub *fakeSubscription, n int) {
	t.Helper()
	for range n {
		select {
		case sub.events <- models.NewReservationEvent{}:
		case <-time.After(5 * time.Second):
			t.Fatal("event not consumed")
		}
	}
}

func TestChannel_FeedClearedOnLogout(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedIn("1", "Agency Admin")
	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })
	deliver(t, h.transport.sub(0), 2)
	eventually(t, "two events", func() bool { return h.feed.Count() == 2 })

	h.sessions.ch <- signedOutSnap
	eventually(t, "close on logout", func() bool { return h.transport.sub(0).closed.Load() })
	h.sessions.ch <- signedIn("2", "Super Admin")
	eventually(t, "dial for next user", func() bool { return h.transport.dials() == 2 })

	if diff := cmp.Diff(FeedState{Title: "Dashboard"}, h.feed.State()); diff != "" {
		t.Errorf("feed for next user (-want +got):\n%s", diff)
	}

	deliver(t, h.transport.sub(1), 1)
	eventually(t, "event for next user", func() bool { return h.feed.Count() == 1 })
	if got := h.feed.Title(); got != "(1) New Reservation - Dashboard" {
		t.Errorf("title = %q", got)
	}
}

func TestChannel_FeedClearedOnRoleChange(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedIn("1", "Agency Admin")
	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })
	deliver(t, h.transport.sub(0), 3)
	eventually(t, "three events", func() bool { return h.feed.Count() == 3 })

	h.sessions.ch <- signedIn("1", "Super Admin")
	eventually(t, "redial for new role", func() bool { return h.transport.dials() == 2 })

	if diff := cmp.Diff(FeedState{Title: "Dashboard"}, h.feed.State()); diff != "" {
		t.Errorf("feed after role change (-want +got):\n%s", diff)
	}
}

func TestChannel_FeedClearedWhenRoleLosesAccess(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedIn("1", "Agency Admin")
	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })
	deliver(t, h.transport.sub(0), 1)
	eventually(t, "event", func() bool { return h.feed.HasNew() })

	h.sessions.ch <- signedIn("1", "Guide")
	eventually(t, "close on demotion", func() bool { return h.transport.sub(0).closed.Load() })

	// Count and flag move together.
	eventually(t, "feed cleared", func() bool {
		s := h.feed.State()
		return s.Count == 0 && !s.HasNew
	})
	if got := h.feed.Title(); got != "Dashboard" {
		t.Errorf("title = %q, want default", got)
	}
}

func TestChannel_SameUserKeepsFeed(t *testing.T) {
	h := startChannel(t)

	h.sessions.ch <- signedIn("1", "Agency Admin")
	eventually(t, "dial", func() bool { return h.transport.dials() == 1 })
	deliver(t, h.transport.sub(0), 2)
	eventually(t, "two events", func() bool { return h.feed.Count() == 2 })

	// A repeated snapshot, e.g. after a menu refresh, is not a transition.
	h.sessions.ch <- signedIn("1", "Agency Admin")
	deliver(t, h.transport.sub(0), 1)
	eventually(t, "third event", func() bool { return h.feed.Count() == 3 })
}
