// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

/*
Package realtime implements the live reservation notification channel.

The channel is independent of the HTTP client: it authenticates once at
connect time with the current access token, and its failures are logged
without ever triggering a token refresh.

# Components

  - Transport / Subscription: a typed stream of models.NewReservationEvent.
    WebSocketTransport speaks the JSON envelope

    {"type":"newReservation","data":{"reservation":{...}}}

    and NATSTransport receives the same payload on a subject.
  - Feed: the unseen counter and the title derived from it.
  - Channel: a suture service that follows session snapshots, opens a
    subscription only for allowed roles and turns events into feed updates,
    desktop notifications and an audio cue.

# Usage

	feed := realtime.NewFeed("Dashboard", realtime.NewTerminalTitle(os.Stdout))
	ch := realtime.NewChannel(cfg.Realtime, cfg.Notifications, manager, store, transport, feed)
	sup.Add(ch)
*/
package realtime
