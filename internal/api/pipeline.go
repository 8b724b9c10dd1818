// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/tourdesk/internal/logging"
)

// Handler sends a request and returns its 2xx response or an error.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Policy wraps a Handler.
type Policy func(next Handler) Handler

// chain applies policies so that the first one listed runs first.
func chain(h Handler, policies ...Policy) Handler {
	for i := len(policies) - 1; i >= 0; i-- {
		h = policies[i](h)
	}
	return h
}

func (c *Client) withRequestID(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		ctx = logging.EnsureCorrelationID(ctx)
		if logging.RequestIDFromContext(ctx) == "" {
			ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())
		}
		return next(ctx, req)
	}
}

func (c *Client) instrument(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)

		event := logging.Ctx(ctx).Debug().
			Str("method", req.Method).
			Str("path", req.Path).
			Dur("duration", time.Since(start)).
			Bool("refreshed", req.refreshed).
			Bool("csrf_retried", req.csrfRetried)
		if resp != nil {
			event = event.Int("status", resp.Status)
		}
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("Request finished")
		return resp, err
	}
}

// refreshOnUnauthorized recovers one 401 per logical request. A failed
// refresh, or a second 401 after the retry, expires the session.
func (c *Client) refreshOnUnauthorized(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		resp, err := next(ctx, req)
		if req.SkipRefresh || !isUnauthorized(err) {
			return resp, err
		}
		if req.refreshed {
			return nil, c.expire(ctx, err)
		}

		req.refreshed = true
		if refreshErr := c.refreshFor(ctx, req.sentToken); refreshErr != nil {
			if errors.Is(refreshErr, errSessionChanged) {
				return nil, err
			}
			return nil, c.expire(ctx, fmt.Errorf("refresh after %s %s: %w", req.Method, req.Path, refreshErr))
		}
		logging.Ctx(ctx).Debug().Str("path", req.Path).Msg("Retrying with refreshed token")

		resp, err = next(ctx, req)
		if isUnauthorized(err) {
			return nil, c.expire(ctx, err)
		}
		return resp, err
	}
}

// retryOnCSRFRejection recovers one CSRF rejection per logical request.
func (c *Client) retryOnCSRFRejection(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		resp, err := next(ctx, req)
		if req.csrfRetried || !isCSRFRejection(err) {
			return resp, err
		}

		req.csrfRetried = true
		c.security.LogCSRFRejected(req.Method, req.Path)
		if cached := c.csrf.Get(); cached == "" || cached == req.sentCSRF {
			c.csrf.Clear()
			if _, fetchErr := c.fetchCSRFShared(ctx, "rejected"); fetchErr != nil {
				return nil, fmt.Errorf("refetch csrf token: %w", fetchErr)
			}
		}
		logging.Ctx(ctx).Debug().Str("path", req.Path).Msg("Retrying with fresh CSRF token")
		return next(ctx, req)
	}
}

func (c *Client) attachCSRF(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if isMutating(req.Method) {
			token, err := c.ensureCSRF(ctx)
			if err != nil {
				return nil, fmt.Errorf("fetch csrf token: %w", err)
			}
			req.Header.Set(c.csrfHeader, token)
			req.sentCSRF = token
		}
		return next(ctx, req)
	}
}

// attachCredential reads the token at send time so a retry picks up the
// refreshed value.
func (c *Client) attachCredential(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		token := c.currentToken(ctx)
		req.sentToken = token
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		} else {
			req.Header.Del("Authorization")
		}
		return next(ctx, req)
	}
}

func (c *Client) rateLimit(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		return next(ctx, req)
	}
}

func (c *Client) circuitBreaker(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if c.breaker == nil {
			return next(ctx, req)
		}
		return c.breaker.Execute(func() (*Response, error) {
			return next(ctx, req)
		})
	}
}
