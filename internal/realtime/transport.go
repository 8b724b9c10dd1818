// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/models"
)

// eventBuffer is the number of decoded events a subscription holds before
// the reader falls behind and new events are dropped.
const eventBuffer = 64

var (
	// ErrHandshakeRejected means the server refused the token at connect time.
	ErrHandshakeRejected = errors.New("realtime handshake rejected")

	// errIgnored marks messages of other types.
	errIgnored = errors.New("ignored message type")
)

// Transport connects to a push source with a bearer token.
type Transport interface {
	Dial(ctx context.Context, token string) (Subscription, error)
}

// Subscription is a live connection. Events is closed when the subscription
// ends and is never reopened.
type Subscription interface {
	Events() <-chan models.NewReservationEvent
	Close() error
}

// NewTransport returns the transport named by cfg.Transport.
func NewTransport(cfg config.RealtimeConfig) (Transport, error) {
	switch cfg.Transport {
	case config.TransportWebSocket, "":
		return NewWebSocketTransport(cfg), nil
	case config.TransportNATS:
		return NewNATSTransport(cfg), nil
	default:
		return nil, fmt.Errorf("unknown realtime transport %q", cfg.Transport)
	}
}

// decodeEvent accepts either the typed envelope or a bare
// {"reservation":{...}} payload.
func decodeEvent(data []byte) (models.NewReservationEvent, error) {
	var event models.NewReservationEvent

	payload := data
	var msg models.RealtimeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return event, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type != "" {
		if msg.Type != models.MessageTypeNewReservation {
			return event, fmt.Errorf("%w: %s", errIgnored, msg.Type)
		}
		payload = msg.Data
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return event, errors.New("empty event payload")
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("failed to parse reservation: %w", err)
	}
	event.ReceivedAt = time.Now()
	return event, nil
}
