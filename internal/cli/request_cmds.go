// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/tourdesk/internal/api"
)

func newRequestCmd(st *rootState) *cobra.Command {
	var (
		data  string
		query []string
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authenticated request to the backend",
		Long: `Sends a request through the session pipeline: the access token and CSRF token
are attached, expired tokens are refreshed once and CSRF rejections are retried once.`,
		Example: `  tourdesk request GET /reservations --query status=pending
  tourdesk request PATCH /activities/42 --data '{"isActive":false}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			if !validMethod(method) {
				return fmt.Errorf("unsupported method %q", args[0])
			}
			values, err := parseQuery(query)
			if err != nil {
				return err
			}
			var body any
			if data != "" {
				if !json.Valid([]byte(data)) {
					return errors.New("--data is not valid JSON")
				}
				body = json.RawMessage(data)
			}

			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				resp, err := a.client.Request(ctx, method, args[1], body, values)
				if err != nil {
					return describe(err)
				}
				return printBody(st.streams.out, resp.Body, raw)
			})
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the body unformatted")
	return cmd
}

func newReservationsCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservations",
		Aliases: []string{"res"},
		Short:   "List and act on reservations",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				var q url.Values
				if status != "" {
					q = url.Values{"status": {status}}
				}
				items, err := a.client.Reservations().List(ctx, q)
				if err != nil {
					return describe(err)
				}
				enc := json.NewEncoder(st.streams.out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")

	var notes string
	confirm := &cobra.Command{
		Use:   "confirm ID",
		Short: "Confirm a pending reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.client.ConfirmReservation(ctx, args[0], notes); err != nil {
					return describe(err)
				}
				fmt.Fprintf(st.streams.out, "Reservation %s confirmed\n", args[0])
				return nil
			})
		},
	}
	confirm.Flags().StringVar(&notes, "notes", "", "notes for the customer")

	var reason string
	cancel := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.client.CancelReservation(ctx, args[0], reason); err != nil {
					return describe(err)
				}
				fmt.Fprintf(st.streams.out, "Reservation %s cancelled\n", args[0])
				return nil
			})
		},
	}
	cancel.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	_ = cancel.MarkFlagRequired("reason")

	complete := &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a reservation as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.client.CompleteReservation(ctx, args[0]); err != nil {
					return describe(err)
				}
				fmt.Fprintf(st.streams.out, "Reservation %s completed\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, confirm, cancel, complete)
	return cmd
}

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --query %q, want key=value", p)
		}
		values.Add(k, v)
	}
	return values, nil
}

// describe prefers the backend's message over the transport detail.
func describe(err error) error {
	if errors.Is(err, api.ErrSessionExpired) {
		return err
	}
	if status := api.StatusOf(err); status != 0 {
		if msg := api.MessageOf(err); msg != "" {
			return fmt.Errorf("%d: %s", status, msg)
		}
	}
	return err
}

func printBody(w io.Writer, body []byte, raw bool) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if !raw && json.Valid(body) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	_, err := fmt.Fprintln(w, string(body))
	return err
}
