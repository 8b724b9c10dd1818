// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Reservation carries the fields of a booking that notifications use.
// Unknown fields are ignored.
type Reservation struct {
	ID            ID      `json:"id,omitempty"`
	ReferenceCode string  `json:"reference_code,omitempty"`
	CustomerName  string  `json:"customer_name,omitempty"`
	CustomerEmail string  `json:"customer_email,omitempty"`
	ActivityName  string  `json:"activity_name,omitempty"`
	Status        string  `json:"status,omitempty"`
	TotalPrice    float64 `json:"total_price,omitempty"`
}

// NewReservationEvent is the payload of a "newReservation" push.
type NewReservationEvent struct {
	Reservation Reservation `json:"reservation"`

	// ReceivedAt is set locally when the event is decoded.
	ReceivedAt time.Time `json:"-"`
}

// CustomerLabel returns the customer name or "a customer" when it is blank.
func (e *NewReservationEvent) CustomerLabel() string {
	if e.Reservation.CustomerName == "" {
		return "a customer"
	}
	return e.Reservation.CustomerName
}

// Realtime message types.
const (
	MessageTypeNewReservation = "newReservation"
)

// RealtimeMessage is the envelope pushed over the websocket transport.
type RealtimeMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
