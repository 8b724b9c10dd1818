// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

// Package cli implements the tourdesk command tree.
//
// Every command loads the layered configuration, initializes logging and
// restores the persisted session before it runs:
//
//	tourdesk login --username alice
//	tourdesk whoami
//	tourdesk request GET /reservations --query status=pending
//	tourdesk watch
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath    string
	logLevel      string
	logFormat     string
	apiURL        string
	storageDriver string
	storagePath   string
}

// streams are the command's standard streams. Tests replace them.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// rootState is shared by the root command and its children.
type rootState struct {
	flags   globalFlags
	streams streams
	cfg     *config.Config

	// newApp builds the command dependencies. Tests swap it out.
	newApp func(ctx context.Context, cfg *config.Config, s streams) (*app, error)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootState{
		streams: streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr},
		newApp:  newApp,
	})
}

func newRootCommand(st *rootState) *cobra.Command {
	root := &cobra.Command{
		Use:           "tourdesk",
		Short:         "Admin client for the tour booking marketplace",
		Long:          `tourdesk signs in to the marketplace backend, keeps the session alive across runs and watches for new reservations.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithKoanf(st.flags.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			applyFlagOverrides(cmd, cfg, st.flags)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logging.Init(logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Caller: cfg.Logging.Caller,
				Output: st.streams.errOut,
			})
			logging.Debug().
				Str("version", Version).
				Str("api", cfg.API.BaseURL).
				Str("storage", cfg.Storage.Driver).
				Msg("Configuration loaded")

			st.cfg = cfg
			return nil
		},
	}
	root.SetIn(st.streams.in)
	root.SetOut(st.streams.out)
	root.SetErr(st.streams.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&st.flags.configPath, "config", "c", "", "config file (default is ./tourdesk.yaml or $CONFIG_PATH)")
	pf.StringVar(&st.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&st.flags.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&st.flags.apiURL, "api-url", "", "backend base URL")
	pf.StringVar(&st.flags.storageDriver, "storage", "", "session storage driver: badger or memory")
	pf.StringVar(&st.flags.storagePath, "storage-path", "", "badger directory")

	root.AddCommand(
		newLoginCmd(st),
		newLogoutCmd(st),
		newLogoutAllCmd(st),
		newWhoamiCmd(st),
		newMenuCmd(st),
		newChangePasswordCmd(st),
		newRequestCmd(st),
		newReservationsCmd(st),
		newWatchCmd(st),
	)
	return root
}

// applyFlagOverrides gives explicitly set flags the last word over file and env.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, f globalFlags) {
	pf := cmd.Flags()
	if pf.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if pf.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if pf.Changed("api-url") {
		cfg.API.BaseURL = f.apiURL
	}
	if pf.Changed("storage") {
		cfg.Storage.Driver = f.storageDriver
	}
	if pf.Changed("storage-path") {
		cfg.Storage.Path = f.storagePath
	}
}

// withApp builds the dependencies, runs fn and releases them.
func (st *rootState) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := logging.EnsureCorrelationID(cmd.Context())
	a, err := st.newApp(ctx, st.cfg, st.streams)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// Execute runs the command tree with ctx, which main cancels on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		var reported *reportedError
		if !errors.Is(err, context.Canceled) && !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}
