// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/metrics"
	"github.com/tomtom215/tourdesk/internal/storage"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Client talks to the admin backend. It is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	userAgent   string
	csrfHeader  string
	authTimeout time.Duration

	store   CredentialStore
	csrf    TokenCache
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*Response]

	handler  Handler
	security *logging.SecurityLogger

	refreshGroup singleflight.Group
	csrfGroup    singleflight.Group

	mu              sync.RWMutex
	expiredHandlers []func(ctx context.Context)
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. A client without a cookie
// jar gets one, since the refresh credential is a cookie.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenCache replaces the in-memory CSRF token cache.
func WithTokenCache(tc TokenCache) Option {
	return func(c *Client) {
		c.csrf = tc
	}
}

// New builds a client for cfg that reads credentials from store.
func New(cfg config.APIConfig, store CredentialStore, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", cfg.BaseURL)
	}

	c := &Client{
		baseURL:     base,
		userAgent:   cfg.UserAgent,
		csrfHeader:  cfg.CSRFHeader,
		authTimeout: cfg.AuthTimeout,
		store:       store,
		csrf:        NewMemoryTokenCache(),
		limiter:     rate.NewLimiter(rate.Inf, 0),
		security:    logging.NewSecurityLogger(),
	}
	if c.csrfHeader == "" {
		c.csrfHeader = "X-CSRF-Token"
	}
	if c.authTimeout <= 0 {
		c.authTimeout = 15 * time.Second
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.CircuitBreaker.Enabled {
		c.breaker = newBreaker(cfg.CircuitBreaker)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	c.handler = chain(c.send,
		c.withRequestID,
		c.instrument,
		c.refreshOnUnauthorized,
		c.retryOnCSRFRejection,
		c.attachCSRF,
		c.attachCredential,
		c.rateLimit,
		c.circuitBreaker,
	)
	return c, nil
}

// OnSessionExpired registers fn to run after a terminal authentication
// failure has cleared the stored session.
func (c *Client) OnSessionExpired(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiredHandlers = append(c.expiredHandlers, fn)
}

// Request encodes body and sends it through the pipeline.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	req, err := NewRequest(method, path, body, query)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Do sends req through the pipeline. req must not be reused.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	return c.handler(ctx, req)
}

// CSRFToken returns the cached token, "" if none.
func (c *Client) CSRFToken() string {
	return c.csrf.Get()
}

// send performs the HTTP round trip.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	target := *c.baseURL
	target.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordClientRequest(req.Method, 0, time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	metrics.RecordClientRequest(req.Method, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", req.Method, req.Path, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, newAPIError(req.Method, req.Path, httpResp.StatusCode, data)
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

// currentToken reads the stored bearer token. Storage errors other than
// "not found" are logged and treated as no token.
func (c *Client) currentToken(ctx context.Context) string {
	token, err := c.store.AccessToken(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to read stored access token")
		}
		return ""
	}
	return token
}

// refreshFor obtains a token newer than stale. If another request already
// replaced stale, nothing is sent. Concurrent callers share one refresh call.
func (c *Client) refreshFor(ctx context.Context, stale string) error {
	if current := c.currentToken(ctx); current != "" && current != stale {
		metrics.RecordTokenRefresh("shared")
		return nil
	}

	_, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.authTimeout)
		defer cancel()

		// a refresh that finished just before this call already replaced stale
		if current := c.currentToken(refreshCtx); current != "" && current != stale {
			return current, nil
		}

		token, err := c.Refresh(refreshCtx)
		if err != nil {
			return nil, err
		}
		// The session may have ended or been replaced while the call was out.
		err = c.store.ReplaceAccessToken(refreshCtx, stale, token)
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrTokenChanged):
			return nil, fmt.Errorf("%w: %w", errSessionChanged, err)
		case err != nil:
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		return token, nil
	})
	switch {
	case errors.Is(err, errSessionChanged):
		metrics.RecordTokenRefresh("discarded")
		logging.Ctx(ctx).Info().Msg("Refreshed token discarded, session changed during refresh")
	case err != nil:
		metrics.RecordTokenRefresh("failure")
		c.security.LogTokenRefresh(false, err.Error())
	case shared:
		metrics.RecordTokenRefresh("shared")
	default:
		metrics.RecordTokenRefresh("success")
		c.security.LogTokenRefresh(true, "")
	}
	return err
}

// expire wipes the stored session and notifies listeners.
func (c *Client) expire(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := c.store.Clear(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to clear stored session")
	}
	metrics.SessionExpiredTotal.Inc()
	logging.Ctx(ctx).Warn().Err(cause).Msg("Session expired")
	c.security.LogSessionExpired(cause.Error())

	c.mu.RLock()
	handlers := append([]func(context.Context){}, c.expiredHandlers...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(ctx)
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, cause)
}

// ensureCSRF returns the cached token, fetching one if the cache is empty.
func (c *Client) ensureCSRF(ctx context.Context) (string, error) {
	if token := c.csrf.Get(); token != "" {
		return token, nil
	}
	return c.fetchCSRFShared(ctx, "missing")
}

// fetchCSRFShared coalesces concurrent fetches.
func (c *Client) fetchCSRFShared(ctx context.Context, reason string) (string, error) {
	v, err, _ := c.csrfGroup.Do("csrf", func() (any, error) {
		metrics.RecordCSRFFetch(reason)
		return c.FetchCSRFToken(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
