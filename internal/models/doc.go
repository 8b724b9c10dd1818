// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

/*
Package models holds the wire types exchanged with the booking marketplace
admin backend and the small value types shared across packages.

Every backend response uses the same envelope:

	{"success": true, "message": "...", "errors": [...], "data": {...}}

Key types:
  - Envelope: the response wrapper; Data is left raw for the caller to decode
  - User: the authenticated principal returned by /auth/me and /auth/login
  - MenuItem: one node of the role-filtered navigation tree
  - NewReservationEvent: a live "newReservation" push
  - Result: outcome of a session operation, mirrored to the UI as-is

IDs arrive as either JSON numbers or strings depending on the endpoint, so
they are normalised to the ID string type.
*/
package models
