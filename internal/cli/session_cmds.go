// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tomtom215/tourdesk/internal/models"
)

// reportedError is a failure the session manager already showed to the user.
type reportedError struct {
	msg string
}

func (e *reportedError) Error() string { return e.msg }

// resultErr turns a failed Result into an error.
func resultErr(res models.Result) error {
	if res.Success {
		return nil
	}
	return &reportedError{msg: res.Error}
}

func newLoginCmd(st *rootState) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				p := newPrompter(st.streams)
				if username == "" {
					u, err := p.line("Username: ")
					if err != nil {
						return err
					}
					username = u
				}
				var password string
				var err error
				if passwordStdin {
					password, err = p.readLine()
				} else {
					password, err = p.secret("Password: ")
				}
				if err != nil {
					return err
				}
				return resultErr(a.sessions.Login(ctx, username, password))
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				return resultErr(a.sessions.Logout(ctx))
			})
		},
	}
}

func newLogoutAllCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout-all",
		Short: "Revoke every session of the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.requireSession(); err != nil {
					return err
				}
				return resultErr(a.sessions.LogoutAll(ctx))
			})
		},
	}
}

func newWhoamiCmd(st *rootState) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(cmd, func(_ context.Context, a *app) error {
				snap := a.sessions.Snapshot()
				out := st.streams.out
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(snap)
				}
				if !snap.IsAuthenticated {
					fmt.Fprintln(out, "Not logged in")
					return nil
				}
				fmt.Fprintf(out, "User:       %s\n", snap.User.Username)
				if snap.User.Email != "" {
					fmt.Fprintf(out, "Email:      %s\n", snap.User.Email)
				}
				fmt.Fprintf(out, "Role:       %s\n", snap.User.RoleName)
				fmt.Fprintf(out, "Privileged: %t\n", snap.IsPrivileged())
				if !snap.CredentialExpiry.IsZero() {
					fmt.Fprintf(out, "Expires:    %s\n", snap.CredentialExpiry.Local().Format(time.RFC1123))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session snapshot as JSON")
	return cmd
}

func newMenuCmd(st *rootState) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Print the navigation menu of the current role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.requireSession(); err != nil {
					return err
				}
				if refresh {
					if err := a.sessions.RefreshMenu(ctx); err != nil {
						return fmt.Errorf("failed to refresh menu: %w", err)
					}
				}
				snap := a.sessions.Snapshot()
				if len(snap.Menu) == 0 {
					fmt.Fprintln(st.streams.out, "(no menu entries)")
					return nil
				}
				printMenu(st.streams.out, snap.Menu)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-fetch the menu before printing")
	return cmd
}

func printMenu(w io.Writer, items []models.MenuItem) {
	models.Walk(items, func(item *models.MenuItem, depth int) bool {
		indent := strings.Repeat("  ", depth)
		if item.Path != "" {
			fmt.Fprintf(w, "%s- %s (%s)\n", indent, item.Name, item.Path)
		} else {
			fmt.Fprintf(w, "%s- %s\n", indent, item.Name)
		}
		return true
	})
}

func newChangePasswordCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "change-password",
		Short: "Change the password; signs you out on success",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.requireSession(); err != nil {
					return err
				}
				p := newPrompter(st.streams)
				current, err := p.secret("Current password: ")
				if err != nil {
					return err
				}
				next, err := p.secret("New password: ")
				if err != nil {
					return err
				}
				confirm, err := p.secret("Confirm new password: ")
				if err != nil {
					return err
				}
				if next != confirm {
					return errors.New("new passwords do not match")
				}
				return resultErr(a.sessions.ChangePassword(ctx, current, next))
			})
		},
	}
}

// prompter reads answers from the terminal, or line by line when stdin is
// not a terminal.
type prompter struct {
	s      streams
	reader *bufio.Reader
}

func newPrompter(s streams) *prompter {
	return &prompter{s: s, reader: bufio.NewReader(s.in)}
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.s.errOut, prompt)
	return p.readLine()
}

func (p *prompter) readLine() (string, error) {
	text, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || text == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(text, "\r\n"), nil
}

// secret reads without echo when stdin is a terminal.
func (p *prompter) secret(prompt string) (string, error) {
	f, ok := p.s.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.line(prompt)
	}
	fmt.Fprint(p.s.errOut, prompt)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.s.errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
