// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tourdesk/internal/console"
	"github.com/tomtom215/tourdesk/internal/guard"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/realtime"
	"github.com/tomtom215/tourdesk/internal/supervisor"
)

// errNothingToWatch is returned when both the channel and the console are off.
var errNothingToWatch = errors.New("nothing to watch: enable realtime or the console")

func newWatchCmd(st *rootState) *cobra.Command {
	var (
		withConsole bool
		consoleAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and report new reservations",
		Long: `Keeps the session open under a supervisor. When realtime is enabled and the
signed-in role may receive them, new reservations update the terminal title,
print a notification and ring the bell. With --console the loopback console
API is served as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("console") {
				st.cfg.Console.Enabled = withConsole
			}
			if consoleAddr != "" {
				st.cfg.Console.Addr = consoleAddr
			}
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				tree, err := buildWatchTree(a)
				if err != nil {
					return err
				}
				logging.Info().
					Bool("realtime", a.cfg.Realtime.Enabled).
					Bool("console", a.cfg.Console.Enabled).
					Msg("Watching")

				err = tree.Serve(ctx)
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&withConsole, "console", false, "serve the loopback console API")
	cmd.Flags().StringVar(&consoleAddr, "console-addr", "", "console listen address")
	return cmd
}

// buildWatchTree assembles the supervised services for a.
func buildWatchTree(a *app) (*supervisor.Tree, error) {
	cfg := a.cfg
	if !cfg.Realtime.Enabled && !cfg.Console.Enabled {
		return nil, errNothingToWatch
	}
	if !cfg.Console.Enabled {
		if _, err := a.requireSession(); err != nil {
			return nil, err
		}
	}

	var sinks []realtime.TitleSink
	if cfg.Notifications.TerminalTitle {
		sinks = append(sinks, realtime.NewTerminalTitle(a.streams.out))
	}
	feed := realtime.NewFeed(cfg.Notifications.DefaultTitle, sinks...)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Realtime.Enabled {
		transport, err := realtime.NewTransport(cfg.Realtime)
		if err != nil {
			return nil, err
		}
		opts := []realtime.ChannelOption{
			realtime.WithDesktop(realtime.NewTerminalDesktop(a.streams.out, cfg.Notifications.Desktop)),
		}
		if cfg.Notifications.Sound {
			opts = append(opts, realtime.WithAudio(realtime.NewBell(a.streams.out)))
		}
		channel := realtime.NewChannel(cfg.Realtime, cfg.Notifications, a.sessions, a.store, transport, feed, opts...)
		tree.AddRealtimeService(channel)
	}

	if cfg.Console.Enabled {
		g, err := guard.New(cfg.Console.GuardPolicy)
		if err != nil {
			return nil, fmt.Errorf("failed to load route policy: %w", err)
		}
		tree.AddConsoleService(console.New(cfg.Console, a.sessions, feed, g))
	}

	return tree, nil
}
