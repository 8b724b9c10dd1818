// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"tourdesk.yaml",
	"tourdesk.yml",
	"config.yaml",
}

// ConfigPathEnvVar overrides the search when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is stripped from environment variable names before mapping.
const EnvPrefix = "TOURDESK_"

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:5000/api",
			Timeout:     30 * time.Second,
			AuthTimeout: 15 * time.Second,
			CSRFHeader:  "X-CSRF-Token",
			UserAgent:   "tourdesk",
			RateLimit:   0,
			RateBurst:   10,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      true,
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Realtime: RealtimeConfig{
			Enabled:           false,
			Transport:         TransportWebSocket,
			URL:               "",
			NATSSubject:       "reservations.new",
			AllowedRoles:      []string{"Super Admin", "Agency Admin"},
			HandshakeTimeout:  10 * time.Second,
			PingInterval:      30 * time.Second,
			Reconnect:         true,
			MaxReconnectDelay: 32 * time.Second,
			MaxReconnects:     60,
		},
		Notifications: NotificationsConfig{
			Desktop:       true,
			Sound:         true,
			TerminalTitle: true,
			DefaultTitle:  "Dashboard",
		},
		Storage: StorageConfig{
			Driver: "badger",
			Path:   defaultStoragePath(),
		},
		Console: ConsoleConfig{
			Enabled:           false,
			Addr:              "127.0.0.1:7420",
			CORSOrigins:       []string{"http://localhost:5173"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".tourdesk", "session")
	}
	return filepath.Join(dir, "tourdesk", "session")
}

// LoadWithKoanf loads configuration in layers:
//  1. Defaults
//  2. Config file: explicitPath, else CONFIG_PATH, else the first of DefaultConfigPaths
//  3. TOURDESK_* environment variables
//
// An explicitPath that does not exist is an error; the other sources are optional.
func LoadWithKoanf(explicitPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := explicitPath
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	} else {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"realtime.allowed_roles",
	"console.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps TOURDESK_* names (prefix stripped, lower-cased) to koanf
// paths. Unlisted variables are ignored.
var envMappings = map[string]string{
	"api_url":                      "api.base_url",
	"api_base_url":                 "api.base_url",
	"api_timeout":                  "api.timeout",
	"api_auth_timeout":             "api.auth_timeout",
	"api_csrf_header":              "api.csrf_header",
	"api_user_agent":               "api.user_agent",
	"api_rate_limit":               "api.rate_limit",
	"api_rate_burst":               "api.rate_burst",
	"circuit_breaker_enabled":      "api.circuit_breaker.enabled",
	"circuit_breaker_timeout":      "api.circuit_breaker.timeout",
	"circuit_breaker_max_requests": "api.circuit_breaker.max_requests",

	"realtime_enabled":             "realtime.enabled",
	"realtime_transport":           "realtime.transport",
	"realtime_url":                 "realtime.url",
	"realtime_nats_subject":        "realtime.nats_subject",
	"realtime_allowed_roles":       "realtime.allowed_roles",
	"realtime_handshake_timeout":   "realtime.handshake_timeout",
	"realtime_ping_interval":       "realtime.ping_interval",
	"realtime_reconnect":           "realtime.reconnect",
	"realtime_max_reconnect_delay": "realtime.max_reconnect_delay",
	"realtime_max_reconnects":      "realtime.max_reconnects",

	"notify_desktop":        "notifications.desktop",
	"notify_sound":          "notifications.sound",
	"notify_terminal_title": "notifications.terminal_title",
	"notify_default_title":  "notifications.default_title",

	"storage_driver": "storage.driver",
	"storage_path":   "storage.path",

	"console_enabled":             "console.enabled",
	"console_addr":                "console.addr",
	"console_cors_origins":        "console.cors_origins",
	"console_rate_limit_requests": "console.rate_limit_requests",
	"console_rate_limit_window":   "console.rate_limit_window",
	"console_guard_policy":        "console.guard_policy",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a koanf path.
//
//	TOURDESK_API_URL      -> api.base_url
//	TOURDESK_REALTIME_URL -> realtime.url
//	TOURDESK_LOG_LEVEL    -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
