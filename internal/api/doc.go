// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

/*
Package api is the single outgoing request path to the admin backend.

Every call goes through an ordered pipeline of policies, outermost first:

	requestID              X-Request-ID and logging context
	instrument             debug log per logical request
	refreshOnUnauthorized  401: one refresh, one retry, else session expired
	retryOnCSRFRejection   403 mentioning CSRF: refetch token, one retry
	attachCSRF             X-CSRF-Token on POST, PUT, PATCH and DELETE
	attachCredential       Authorization: Bearer <token from storage>
	rateLimit              client-side throttle
	circuitBreaker         trips on transport errors and 5xx
	send                   net/http round trip

Recovery flags live on the Request, so a logical request is refreshed at most
once and CSRF-retried at most once regardless of how the two interleave.

Errors:
  - non-2xx responses are *APIError carrying the status and the backend message
  - terminal authentication failures wrap ErrSessionExpired after the stored
    session was cleared and OnSessionExpired handlers ran
  - transport errors and other statuses pass through untouched

Usage:

	client, err := api.New(cfg.API, store)
	resp, err := client.Request(ctx, http.MethodGet, "/reservations", nil, url.Values{"page": {"1"}})
	var page []api.Record
	err = resp.Decode(&page)
*/
package api
