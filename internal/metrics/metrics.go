// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

// Package metrics registers the Prometheus collectors for the API client,
// the session manager and the live notification channel. They are exposed
// by the local console at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API client
	ClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourdesk_client_requests_total",
			Help: "Total number of HTTP requests sent to the admin backend",
		},
		[]string{"method", "status"}, // status: HTTP code or "error"
	)

	ClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourdesk_client_request_duration_seconds",
			Help:    "Duration of HTTP requests to the admin backend in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourdesk_token_refresh_total",
			Help: "Access token refresh attempts",
		},
		[]string{"result"}, // success, failure, shared
	)

	CSRFFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourdesk_csrf_fetch_total",
			Help: "CSRF token fetches",
		},
		[]string{"reason"}, // missing, rejected, login
	)

	SessionExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tourdesk_session_expired_total",
			Help: "Terminal authentication failures that cleared the session",
		},
	)

	// Session manager
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourdesk_session_transitions_total",
			Help: "Session state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	SessionAuthenticated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourdesk_session_authenticated",
			Help: "1 while a user is signed in",
		},
	)

	// Live notifications
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourdesk_realtime_connections",
			Help: "Open live notification subscriptions (0 or 1)",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourdesk_realtime_events_total",
			Help: "Live events received",
		},
		[]string{"type"},
	)

	RealtimeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourdesk_realtime_errors_total",
			Help: "Live channel errors",
		},
		[]string{"stage"}, // dial, read, decode, desktop, audio
	)

	UnseenReservations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourdesk_unseen_reservations",
			Help: "Reservations received since the user last looked",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tourdesk_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourdesk_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordClientRequest records one round trip. A zero status means the
// transport failed before a response arrived.
func RecordClientRequest(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ClientRequestsTotal.WithLabelValues(method, label).Inc()
	ClientRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTokenRefresh records a refresh outcome.
func RecordTokenRefresh(result string) {
	TokenRefreshTotal.WithLabelValues(result).Inc()
}

// RecordCSRFFetch records why a CSRF token was fetched.
func RecordCSRFFetch(reason string) {
	CSRFFetchTotal.WithLabelValues(reason).Inc()
}

// RecordSessionTransition records a state change and keeps the
// authenticated gauge in sync.
func RecordSessionTransition(from, to string) {
	SessionTransitions.WithLabelValues(from, to).Inc()
	if to == "authenticated" {
		SessionAuthenticated.Set(1)
	} else {
		SessionAuthenticated.Set(0)
	}
}

// RecordRealtimeEvent counts a received event of the given type.
func RecordRealtimeEvent(eventType string) {
	RealtimeEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordRealtimeError counts a channel error at stage.
func RecordRealtimeError(stage string) {
	RealtimeErrorsTotal.WithLabelValues(stage).Inc()
}

// SetRealtimeConnected flips the connection gauge.
func SetRealtimeConnected(connected bool) {
	if connected {
		RealtimeConnections.Set(1)
		return
	}
	RealtimeConnections.Set(0)
}

// SetUnseenReservations mirrors the feed counter.
func SetUnseenReservations(n int) {
	UnseenReservations.Set(float64(n))
}

// RecordCircuitBreakerTransition updates the state gauge and counts the move.
// States use gobreaker's String() names: closed, half-open, open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
