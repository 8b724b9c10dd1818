// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

/*
Package session owns "who is logged in and what can they see".

State machine:

	Uninitialized -> Restoring -> Authenticated | Unauthenticated
	Authenticated -> Unauthenticated   (logout, logout-all, password change, expiry)
	Unauthenticated -> Authenticated   (login)

Consumers never read the manager's fields. They call Snapshot or Subscribe and
receive copies; the access token is never part of a snapshot.

Every change of who is signed in bumps a generation counter. Restore and Login
commit only if the generation they started with is still current, so a logout
that lands while either is waiting on the network is never undone.
*/
package session
