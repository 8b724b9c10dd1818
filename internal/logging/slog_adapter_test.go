// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	logger := NewSlogLogger().With("service", "realtime-channel").WithGroup("suture")
	logger.Warn("service restarted", "attempt", 2)

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"service":"realtime-channel"`, `"suture.attempt":2`, "service restarted"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	if got := slogToZerologLevel(slog.LevelError + 4); got.String() != "error" {
		t.Errorf("level above error mapped to %v", got)
	}
	if got := slogToZerologLevel(slog.LevelDebug); got.String() != "debug" {
		t.Errorf("debug mapped to %v", got)
	}
}
