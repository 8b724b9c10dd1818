// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/metrics"
	"github.com/tomtom215/tourdesk/internal/models"
)

// DefaultNATSSubject carries new reservation events.
const DefaultNATSSubject = "reservations.new"

// NATSTransport receives reservation events from a NATS subject.
// Reconnects are handled by nats.go.
type NATSTransport struct {
	url              string
	subject          string
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	maxReconnects    int
	reconnectWait    time.Duration
}

// NewNATSTransport builds a transport from cfg.
func NewNATSTransport(cfg config.RealtimeConfig) *NATSTransport {
	subject := cfg.NATSSubject
	if subject == "" {
		subject = DefaultNATSSubject
	}
	maxReconnects := cfg.MaxReconnects
	if !cfg.Reconnect {
		maxReconnects = 0
	}
	return &NATSTransport{
		url:              cfg.URL,
		subject:          subject,
		handshakeTimeout: cfg.HandshakeTimeout,
		pingInterval:     cfg.PingInterval,
		maxReconnects:    maxReconnects,
		reconnectWait:    initialReconnectDelay,
	}
}

// Dial connects with the token and subscribes to the subject.
func (t *NATSTransport) Dial(ctx context.Context, token string) (Subscription, error) {
	// nats.go closes the connection for good once reconnects are exhausted.
	closed := make(chan struct{})
	opts := []nats.Option{
		nats.Name("tourdesk"),
		nats.Token(token),
		nats.MaxReconnects(t.maxReconnects),
		nats.ReconnectWait(t.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.SetRealtimeConnected(false)
			if err != nil {
				metrics.RecordRealtimeError("read")
				logging.Warn().Err(err).Msg("Realtime NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.SetRealtimeConnected(true)
			logging.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("Realtime NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			metrics.RecordRealtimeError("subscription")
			logging.Warn().Err(err).Msg("Realtime NATS error")
		}),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	}
	if t.handshakeTimeout > 0 {
		opts = append(opts, nats.Timeout(t.handshakeTimeout))
	}
	if t.pingInterval > 0 {
		opts = append(opts, nats.PingInterval(t.pingInterval))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nc, err := nats.Connect(t.url, opts...)
	if err != nil {
		metrics.RecordRealtimeError("connect")
		if isNATSAuthError(err) {
			return nil, fmt.Errorf("%w: %w", ErrHandshakeRejected, err)
		}
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	raw := make(chan *nats.Msg, eventBuffer)
	sub, err := nc.ChanSubscribe(t.subject, raw)
	if err != nil {
		nc.Close()
		metrics.RecordRealtimeError("connect")
		return nil, fmt.Errorf("subscribe to %s: %w", t.subject, err)
	}
	// Surface permission errors for the subject before reporting success.
	if err := nc.FlushTimeout(flushTimeout(t.handshakeTimeout)); err != nil {
		nc.Close()
		metrics.RecordRealtimeError("connect")
		return nil, fmt.Errorf("subscribe to %s: %w", t.subject, err)
	}
	if err := nc.LastError(); err != nil {
		nc.Close()
		metrics.RecordRealtimeError("connect")
		return nil, fmt.Errorf("subscribe to %s: %w", t.subject, err)
	}

	metrics.SetRealtimeConnected(true)
	logging.Info().Str("url", nc.ConnectedUrlRedacted()).Str("subject", t.subject).Msg("Realtime NATS connected")

	runCtx, cancel := context.WithCancel(ctx)
	s := &natsSubscription{
		nc:     nc,
		sub:    sub,
		raw:    raw,
		closed: closed,
		events: make(chan models.NewReservationEvent, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(runCtx)
	return s, nil
}

// isNATSAuthError matches both the sentinel and the plain error nats.go
// returns for a -ERR received during the connect handshake.
func isNATSAuthError(err error) bool {
	if errors.Is(err, nats.ErrAuthorization) || errors.Is(err, nats.ErrAuthExpired) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "authorization violation")
}

func flushTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

type natsSubscription struct {
	nc        *nats.Conn
	sub       *nats.Subscription
	raw       chan *nats.Msg
	closed    <-chan struct{}
	events    chan models.NewReservationEvent
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (s *natsSubscription) Events() <-chan models.NewReservationEvent {
	return s.events
}

// Close unsubscribes, closes the connection and waits for the reader.
func (s *natsSubscription) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return nil
}

func (s *natsSubscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer metrics.SetRealtimeConnected(false)
	defer func() {
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			logging.Debug().Err(err).Msg("Failed to unsubscribe")
		}
		s.nc.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			logging.Warn().Msg("Realtime NATS connection closed")
			return
		case msg := <-s.raw:
			event, err := decodeEvent(msg.Data)
			if err != nil {
				if errors.Is(err, errIgnored) {
					logging.Debug().Err(err).Msg("Realtime message skipped")
				} else {
					metrics.RecordRealtimeError("decode")
					logging.Warn().Err(err).Msg("Failed to decode realtime message")
				}
				continue
			}
			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
