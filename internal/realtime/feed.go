// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/tourdesk/internal/metrics"
)

// seenSection is the path fragment that marks reservations as seen.
const seenSection = "reservation"

// FeedState is a point-in-time view of the feed.
type FeedState struct {
	Count  int    `json:"count"`
	HasNew bool   `json:"hasNew"`
	Title  string `json:"title"`
}

// Feed counts reservations the user has not looked at yet and keeps the
// title in sync with the count.
type Feed struct {
	mu           sync.Mutex
	count        int
	defaultTitle string
	sinks        []TitleSink
}

// NewFeed returns an empty feed. Every sink receives the current title
// immediately and after every change.
func NewFeed(defaultTitle string, sinks ...TitleSink) *Feed {
	f := &Feed{defaultTitle: defaultTitle, sinks: sinks}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishLocked()
	return f
}

// Increment records one new reservation and returns the new count.
func (f *Feed) Increment() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.publishLocked()
	return f.count
}

// MarkSeen resets the counter and restores the default title.
func (f *Feed) MarkSeen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == 0 {
		return
	}
	f.count = 0
	f.publishLocked()
}

// Reset clears the counter and republishes the default title even when
// nothing was unseen.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = 0
	f.publishLocked()
}

// Visit marks the feed seen when path is inside the reservations section.
// It reports whether it did.
func (f *Feed) Visit(path string) bool {
	if !strings.Contains(strings.ToLower(path), seenSection) {
		return false
	}
	f.MarkSeen()
	return true
}

// Count returns the number of unseen reservations.
func (f *Feed) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// HasNew reports whether any reservation is unseen.
func (f *Feed) HasNew() bool {
	return f.Count() > 0
}

// Title returns the title for the current count.
func (f *Feed) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titleLocked()
}

// State returns count, flag and title read together.
func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedState{Count: f.count, HasNew: f.count > 0, Title: f.titleLocked()}
}

func (f *Feed) titleLocked() string {
	switch {
	case f.count <= 0:
		return f.defaultTitle
	case f.count == 1:
		return fmt.Sprintf("(1) New Reservation - %s", f.defaultTitle)
	default:
		return fmt.Sprintf("(%d) New Reservations - %s", f.count, f.defaultTitle)
	}
}

// publishLocked runs under mu so sinks see titles in order.
func (f *Feed) publishLocked() {
	metrics.SetUnseenReservations(f.count)
	title := f.titleLocked()
	for _, sink := range f.sinks {
		sink.SetTitle(title)
	}
}
