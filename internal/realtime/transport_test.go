// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"errors"
	"testing"

	"github.com/tomtom215/tourdesk/internal/config"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		customer string
		wantErr  bool
		ignored  bool
	}{
		{name: "envelope", data: `{"type":"newReservation","data":{"reservation":{"id":12,"customer_name":"Dana"}}}`, customer: "Dana"},
		{name: "bare payload", data: `{"reservation":{"reference_code":"R-1"}}`, customer: "a customer"},
		{name: "other type", data: `{"type":"ping","data":{}}`, wantErr: true, ignored: true},
		{name: "invalid json", data: `{`, wantErr: true},
		{name: "envelope without data", data: `{"type":"newReservation"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := decodeEvent([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if errors.Is(err, errIgnored) != tt.ignored {
					t.Errorf("ignored = %v, want %v", errors.Is(err, errIgnored), tt.ignored)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEvent() error = %v", err)
			}
			if got := event.CustomerLabel(); got != tt.customer {
				t.Errorf("CustomerLabel() = %q, want %q", got, tt.customer)
			}
			if event.ReceivedAt.IsZero() {
				t.Error("ReceivedAt not set")
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	if tr, err := NewTransport(config.RealtimeConfig{Transport: config.TransportWebSocket}); err != nil {
		t.Fatal(err)
	} else if _, ok := tr.(*WebSocketTransport); !ok {
		t.Errorf("got %T", tr)
	}
	if tr, err := NewTransport(config.RealtimeConfig{Transport: config.TransportNATS}); err != nil {
		t.Fatal(err)
	} else if _, ok := tr.(*NATSTransport); !ok {
		t.Errorf("got %T", tr)
	}
	if _, err := NewTransport(config.RealtimeConfig{Transport: "smoke-signals"}); err == nil {
		t.Error("expected error for unknown transport")
	}
}
