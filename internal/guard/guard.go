// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

// Package guard decides whether a session may open an admin section.
//
// Sections and the subjects allowed to open them are a casbin RBAC policy:
//
//	p, member, /dashboard
//	p, privileged, /platform/*
//	g, privileged, member
//
// A signed-in user is "privileged" when their role is a system role and
// "member" otherwise. A path no subject may open does not exist.
package guard

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/tourdesk/internal/session"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Subjects used in the policy.
const (
	SubjectMember     = "member"
	SubjectPrivileged = "privileged"
)

// Well-known paths.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	RootPath      = "/"
)

// Action is the outcome of a guard check.
type Action int

const (
	// Wait means the session is still restoring.
	Wait Action = iota
	Allow
	RedirectLogin
	RedirectDashboard
	NotFound
)

func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Decision is what a shell should do for a requested path.
type Decision struct {
	Action Action `json:"action"`

	// Path is the normalised requested path.
	Path string `json:"path"`

	// Target is where to go for redirects.
	Target string `json:"target,omitempty"`

	// From is the path to return to after login.
	From string `json:"from,omitempty"`
}

// Guard wraps a casbin enforcer loaded with the route policy.
type Guard struct {
	enforcer *casbin.SyncedEnforcer
}

// New builds a guard from the embedded policy, or from policyPath when it
// names an existing file.
func New(policyPath string) (*Guard, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if policyPath != "" {
		if _, statErr := os.Stat(policyPath); statErr != nil {
			return nil, fmt.Errorf("guard policy: %w", statErr)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return &Guard{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy adds the p and g lines of a policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) != 3 {
			return fmt.Errorf("malformed policy line %q", line)
		}

		switch parts[0] {
		case "p":
			if _, err := enforcer.AddPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case "g":
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("unknown policy type %q", parts[0])
		}
	}
	return nil
}

// Check decides what to do when snap navigates to requested.
func (g *Guard) Check(snap session.Snapshot, requested string) (Decision, error) {
	p := Normalize(requested)
	d := Decision{Path: p}

	if p == LoginPath {
		if snap.IsAuthenticated {
			d.Action, d.Target = RedirectDashboard, DashboardPath
		} else {
			d.Action = Allow
		}
		return d, nil
	}

	known := p == RootPath
	if !known {
		ok, err := g.enforcer.Enforce(SubjectPrivileged, p)
		if err != nil {
			return d, fmt.Errorf("enforcement failed: %w", err)
		}
		known = ok
	}
	if !known {
		d.Action = NotFound
		return d, nil
	}

	switch {
	case snap.Loading:
		d.Action = Wait
		return d, nil
	case !snap.IsAuthenticated:
		d.Action, d.Target, d.From = RedirectLogin, LoginPath, p
		return d, nil
	case p == RootPath:
		d.Action, d.Target = RedirectDashboard, DashboardPath
		return d, nil
	}

	allowed, err := g.enforcer.Enforce(SubjectOf(snap), p)
	if err != nil {
		return d, fmt.Errorf("enforcement failed: %w", err)
	}
	if allowed {
		d.Action = Allow
	} else {
		d.Action, d.Target = RedirectDashboard, DashboardPath
	}
	return d, nil
}

// SubjectOf maps a session to its policy subject.
func SubjectOf(snap session.Snapshot) string {
	if snap.IsPrivileged() {
		return SubjectPrivileged
	}
	return SubjectMember
}

// Normalize strips query and fragment, cleans the path and makes it rooted.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
