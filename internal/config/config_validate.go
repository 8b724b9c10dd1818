// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/tourdesk/internal/validation"
)

// Validate checks field rules and the cross-field constraints the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	return c.validateStorage()
}

func (c *Config) validateRealtime() error {
	if !c.Realtime.Enabled {
		return nil
	}
	if c.Realtime.URL == "" {
		return fmt.Errorf("realtime.url is required when realtime.enabled=true")
	}
	u, err := url.Parse(c.Realtime.URL)
	if err != nil {
		return fmt.Errorf("realtime.url: %w", err)
	}

	switch c.Realtime.Transport {
	case TransportWebSocket:
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("realtime.url must use ws:// or wss:// for the websocket transport, got %q", u.Scheme)
		}
	case TransportNATS:
		if u.Scheme != "nats" && u.Scheme != "tls" {
			return fmt.Errorf("realtime.url must use nats:// or tls:// for the nats transport, got %q", u.Scheme)
		}
		if strings.TrimSpace(c.Realtime.NATSSubject) == "" {
			return fmt.Errorf("realtime.nats_subject is required for the nats transport")
		}
	}

	if len(c.Realtime.AllowedRoles) == 0 {
		return fmt.Errorf("realtime.allowed_roles must name at least one role")
	}
	if c.Realtime.HandshakeTimeout <= 0 {
		return fmt.Errorf("realtime.handshake_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Driver == "badger" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the badger driver")
	}
	return nil
}
