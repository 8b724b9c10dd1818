// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TitleSink displays the window or tab title.
type TitleSink interface {
	SetTitle(title string)
}

// TitleSinkFunc adapts a function to TitleSink.
type TitleSinkFunc func(title string)

// SetTitle calls f.
func (f TitleSinkFunc) SetTitle(title string) { f(title) }

// Permission is the user's decision about desktop notifications.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Desktop raises passive notifications.
type Desktop interface {
	Permission() Permission
	RequestPermission(ctx context.Context) Permission
	Notify(title, body string) error
}

// AudioCue plays a short sound.
type AudioCue interface {
	Play(ctx context.Context) error
}

// TerminalTitle sets the terminal window title with the OSC 0 sequence.
type TerminalTitle struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalTitle writes title sequences to w.
func NewTerminalTitle(w io.Writer) *TerminalTitle {
	return &TerminalTitle{w: w}
}

// SetTitle implements TitleSink.
func (t *TerminalTitle) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// BEL and ESC would end or corrupt the sequence.
	clean := strings.Map(func(r rune) rune {
		if r == '\a' || r == '\x1b' {
			return -1
		}
		return r
	}, title)
	_, _ = fmt.Fprintf(t.w, "\x1b]0;%s\a", clean)
}

// TerminalDesktop prints notifications as lines. Permission is decided by
// the constructor since a terminal has nobody to ask.
type TerminalDesktop struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
}

// NewTerminalDesktop prints to w when enabled.
func NewTerminalDesktop(w io.Writer, enabled bool) *TerminalDesktop {
	return &TerminalDesktop{w: w, enabled: enabled}
}

// Permission implements Desktop.
func (d *TerminalDesktop) Permission() Permission {
	if d.enabled {
		return PermissionGranted
	}
	return PermissionDenied
}

// RequestPermission implements Desktop.
func (d *TerminalDesktop) RequestPermission(context.Context) Permission {
	return d.Permission()
}

// Notify implements Desktop.
func (d *TerminalDesktop) Notify(title, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.w, "[%s] %s\n", title, body)
	return err
}

// Bell rings the terminal bell.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBell writes BEL to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

// Play implements AudioCue.
func (b *Bell) Play(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.w, "\a")
	return err
}

type nopDesktop struct{}

func (nopDesktop) Permission() Permission                       { return PermissionDenied }
func (nopDesktop) RequestPermission(context.Context) Permission { return PermissionDenied }
func (nopDesktop) Notify(string, string) error                  { return nil }

type nopAudio struct{}

func (nopAudio) Play(context.Context) error { return nil }
