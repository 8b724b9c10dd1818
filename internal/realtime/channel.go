// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/metrics"
	"github.com/tomtom215/tourdesk/internal/models"
	"github.com/tomtom215/tourdesk/internal/session"
)

// Notification text.
const (
	NotificationTitle = "New Reservation"
	notificationBody  = "New reservation from %s"
)

// SessionSource publishes session snapshots. *session.Manager satisfies it.
type SessionSource interface {
	Subscribe() (<-chan session.Snapshot, func())
}

// CredentialSource reads the current access token. storage.Store satisfies it.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Channel keeps at most one subscription open, for as long as the signed-in
// user's role is allowed to receive reservation events.
//
// Channel implements suture.Service.
type Channel struct {
	transport    Transport
	sessions     SessionSource
	credentials  CredentialSource
	feed         *Feed
	desktop      Desktop
	audio        AudioCue
	allowedRoles []string
	notify       config.NotificationsConfig
	name         string
}

// ChannelOption customises a Channel.
type ChannelOption func(*Channel)

// WithDesktop sets the desktop notification capability.
func WithDesktop(d Desktop) ChannelOption {
	return func(c *Channel) { c.desktop = d }
}

// WithAudio sets the audio cue.
func WithAudio(a AudioCue) ChannelOption {
	return func(c *Channel) { c.audio = a }
}

// NewChannel wires a channel. Desktop and audio default to no-ops.
func NewChannel(
	cfg config.RealtimeConfig,
	notify config.NotificationsConfig,
	sessions SessionSource,
	credentials CredentialSource,
	transport Transport,
	feed *Feed,
	opts ...ChannelOption,
) *Channel {
	c := &Channel{
		transport:    transport,
		sessions:     sessions,
		credentials:  credentials,
		feed:         feed,
		desktop:      nopDesktop{},
		audio:        nopAudio{},
		allowedRoles: cfg.AllowedRoles,
		notify:       notify,
		name:         "realtime-channel",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feed returns the feed events are counted in.
func (c *Channel) Feed() *Feed {
	return c.feed
}

// Allowed reports whether role receives reservation events.
func (c *Channel) Allowed(role string) bool {
	return role != "" && slices.Contains(c.allowedRoles, role)
}

// Serve follows session snapshots until ctx is cancelled.
func (c *Channel) Serve(ctx context.Context) error {
	log := logging.WithComponent("realtime")

	if c.notify.Desktop && c.desktop.Permission() == PermissionDefault {
		perm := c.desktop.RequestPermission(ctx)
		log.Debug().Str("permission", perm.String()).Msg("Desktop notification permission")
	}

	snapshots, unsubscribe := c.sessions.Subscribe()
	defer unsubscribe()

	var (
		sub    Subscription
		events <-chan models.NewReservationEvent
		active string
	)
	closeSub := func() {
		if sub == nil {
			return
		}
		if err := sub.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close realtime subscription")
		}
		sub, events = nil, nil
		log.Info().Msg("Realtime channel closed")
	}
	defer closeSub()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			key := c.subscriptionKey(snap)
			if key == active {
				continue
			}
			closeSub()
			// Unseen reservations belong to the previous user or role.
			c.feed.Reset()
			active = key
			if key == "" {
				continue
			}
			roleLog := log.With().Str("role", snap.RoleName()).Logger()
			sub = c.open(ctx, &roleLog)
			if sub != nil {
				events = sub.Events()
			}

		case event, ok := <-events:
			if !ok {
				log.Warn().Msg("Realtime subscription ended")
				sub, events = nil, nil
				continue
			}
			c.handle(ctx, event)
		}
	}
}

// subscriptionKey identifies who the subscription is for; "" means none.
func (c *Channel) subscriptionKey(snap session.Snapshot) string {
	if !snap.IsAuthenticated || snap.User == nil || !c.Allowed(snap.User.RoleName) {
		return ""
	}
	return string(snap.User.ID) + "|" + snap.User.RoleName
}

func (c *Channel) open(ctx context.Context, log *zerolog.Logger) Subscription {
	token, err := c.credentials.AccessToken(ctx)
	if err != nil || token == "" {
		metrics.RecordRealtimeError("credential")
		log.Warn().Err(err).Msg("No access token for realtime channel")
		return nil
	}
	sub, err := c.transport.Dial(ctx, token)
	if err != nil {
		log.Warn().Err(err).Msg("Realtime connection failed")
		return nil
	}
	log.Info().Msg("Realtime channel open")
	return sub
}

// handle applies one event. Notification failures are logged only.
func (c *Channel) handle(ctx context.Context, event models.NewReservationEvent) {
	count := c.feed.Increment()
	metrics.RecordRealtimeEvent(models.MessageTypeNewReservation)
	logging.Ctx(ctx).Info().
		Str("reference", event.Reservation.ReferenceCode).
		Int("unseen", count).
		Msg("New reservation received")

	if c.notify.Desktop && c.desktop.Permission() == PermissionGranted {
		if err := c.desktop.Notify(NotificationTitle, NotificationBody(event)); err != nil {
			logging.Debug().Err(err).Msg("Desktop notification failed")
		}
	}
	if c.notify.Sound {
		if err := c.audio.Play(ctx); err != nil {
			logging.Debug().Err(err).Msg("Could not play sound")
		}
	}
}

// NotificationBody is the desktop notification text for event.
func NotificationBody(event models.NewReservationEvent) string {
	return fmt.Sprintf(notificationBody, event.CustomerLabel())
}

// String implements fmt.Stringer for suture logs.
func (c *Channel) String() string {
	return c.name
}
