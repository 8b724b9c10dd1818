// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

// Package config loads Tourdesk configuration from built-in defaults, an
// optional YAML file and TOURDESK_* environment variables, in that order of
// increasing precedence.
//
//	cfg, err := config.LoadWithKoanf("")
//	if err != nil {
//	    return err
//	}
//
// An explicit path (the --config flag) wins over CONFIG_PATH and the default
// search locations.
package config

import "time"

// Config is the complete configuration.
type Config struct {
	API           APIConfig           `koanf:"api"`
	Realtime      RealtimeConfig      `koanf:"realtime"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Storage       StorageConfig       `koanf:"storage"`
	Console       ConsoleConfig       `koanf:"console"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// APIConfig configures the HTTP client for the admin backend.
type APIConfig struct {
	// BaseURL is the REST root, e.g. https://admin.example.com/api.
	BaseURL string `koanf:"base_url" validate:"required,http_url"`

	// Timeout bounds every HTTP round trip.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// AuthTimeout bounds login and refresh calls.
	AuthTimeout time.Duration `koanf:"auth_timeout" validate:"gt=0"`

	// CSRFHeader is the header that carries the anti-forgery token.
	CSRFHeader string `koanf:"csrf_header" validate:"required"`

	UserAgent string `koanf:"user_agent"`

	// RateLimit is the client-side request rate per second. 0 disables it.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"gte=0"`

	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig configures the breaker around the HTTP transport.
type CircuitBreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

// Realtime transports.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// RealtimeConfig configures the live notification channel.
type RealtimeConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Transport string `koanf:"transport" validate:"oneof=websocket nats"`

	// URL is the websocket endpoint (ws:// or wss://) or the NATS server URL.
	URL string `koanf:"url"`

	NATSSubject string `koanf:"nats_subject"`

	// AllowedRoles are the role names that receive reservation events.
	AllowedRoles []string `koanf:"allowed_roles"`

	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	PingInterval     time.Duration `koanf:"ping_interval"`

	// Reconnect enables transport-level reconnects for the websocket transport.
	Reconnect         bool          `koanf:"reconnect"`
	MaxReconnectDelay time.Duration `koanf:"max_reconnect_delay"`

	// MaxReconnects is passed to nats.go. -1 retries forever.
	MaxReconnects int `koanf:"max_reconnects"`
}

// NotificationsConfig configures the passive notification sinks.
type NotificationsConfig struct {
	Desktop       bool   `koanf:"desktop"`
	Sound         bool   `koanf:"sound"`
	TerminalTitle bool   `koanf:"terminal_title"`
	DefaultTitle  string `koanf:"default_title" validate:"required"`
}

// StorageConfig selects where the session is persisted.
type StorageConfig struct {
	Driver string `koanf:"driver" validate:"oneof=badger memory"`
	Path   string `koanf:"path"`
}

// ConsoleConfig configures the local HTTP console.
type ConsoleConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Addr              string        `koanf:"addr" validate:"required,hostname_port"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// GuardPolicy replaces the embedded route policy when set.
	GuardPolicy string `koanf:"guard_policy"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
