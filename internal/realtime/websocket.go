// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tourdesk/internal/config"
	"github.com/tomtom215/tourdesk/internal/logging"
	"github.com/tomtom215/tourdesk/internal/metrics"
	"github.com/tomtom215/tourdesk/internal/models"
)

const (
	initialReconnectDelay = 1 * time.Second
	closeWriteTimeout     = 1 * time.Second
)

// WebSocketTransport receives reservation events over a websocket. The token
// is sent once, in the handshake Authorization header.
type WebSocketTransport struct {
	url               string
	handshakeTimeout  time.Duration
	pingInterval      time.Duration
	reconnect         bool
	maxReconnectDelay time.Duration
	maxReconnects     int
}

// NewWebSocketTransport builds a transport from cfg.
func NewWebSocketTransport(cfg config.RealtimeConfig) *WebSocketTransport {
	maxDelay := cfg.MaxReconnectDelay
	if maxDelay < initialReconnectDelay {
		maxDelay = initialReconnectDelay
	}
	return &WebSocketTransport{
		url:               cfg.URL,
		handshakeTimeout:  cfg.HandshakeTimeout,
		pingInterval:      cfg.PingInterval,
		reconnect:         cfg.Reconnect,
		maxReconnectDelay: maxDelay,
		maxReconnects:     cfg.MaxReconnects,
	}
}

// Dial connects and starts reading. The subscription ends when ctx is
// cancelled, Close is called, or the connection is lost and cannot be
// re-established.
func (t *WebSocketTransport) Dial(ctx context.Context, token string) (Subscription, error) {
	conn, err := t.dial(ctx, token)
	if err != nil {
		metrics.RecordRealtimeError("connect")
		return nil, err
	}
	metrics.SetRealtimeConnected(true)
	logging.Info().Str("url", t.url).Msg("Realtime websocket connected")

	runCtx, cancel := context.WithCancel(ctx)
	s := &wsSubscription{
		transport: t,
		token:     token,
		events:    make(chan models.NewReservationEvent, eventBuffer),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.run(runCtx, conn)
	return s, nil
}

func (t *WebSocketTransport) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  t.handshakeTimeout,
		EnableCompression: true,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, t.url, header)
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close handshake response body")
		}
	}
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, fmt.Errorf("%w (status %d)", ErrHandshakeRejected, resp.StatusCode)
			}
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

type wsSubscription struct {
	transport *WebSocketTransport
	token     string
	events    chan models.NewReservationEvent
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsSubscription) Events() <-chan models.NewReservationEvent {
	return s.events
}

// Close stops the subscription and waits for the reader to exit.
func (s *wsSubscription) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return nil
}

// run reads from conn and reconnects with capped exponential backoff when
// the connection drops.
func (s *wsSubscription) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)
	defer close(s.events)
	defer metrics.SetRealtimeConnected(false)

	t := s.transport
	for {
		err := s.readLoop(ctx, conn)
		metrics.SetRealtimeConnected(false)
		if ctx.Err() != nil {
			return
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			logging.Info().Msg("Realtime websocket closed by server")
		} else {
			metrics.RecordRealtimeError("read")
			logging.Warn().Err(err).Msg("Realtime websocket read failed")
		}
		if !t.reconnect {
			return
		}

		next, ok := s.redial(ctx)
		if !ok {
			return
		}
		conn = next
		metrics.SetRealtimeConnected(true)
		logging.Info().Msg("Realtime websocket reconnected")
	}
}

func (s *wsSubscription) redial(ctx context.Context) (*websocket.Conn, bool) {
	t := s.transport
	delay := initialReconnectDelay
	for attempt := 1; ; attempt++ {
		logging.Info().Dur("delay", delay).Int("attempt", attempt).Msg("Realtime connection lost, reconnecting")
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		}
		delay *= 2
		if delay > t.maxReconnectDelay {
			delay = t.maxReconnectDelay
		}

		conn, err := t.dial(ctx, s.token)
		if err == nil {
			return conn, true
		}
		metrics.RecordRealtimeError("reconnect")
		if errors.Is(err, ErrHandshakeRejected) {
			logging.Warn().Err(err).Msg("Realtime token rejected, giving up")
			return nil, false
		}
		if ctx.Err() != nil {
			return nil, false
		}
		logging.Warn().Err(err).Msg("Realtime reconnect failed")
		if t.maxReconnects >= 0 && attempt >= t.maxReconnects {
			logging.Warn().Int("attempts", attempt).Msg("Realtime reconnect attempts exhausted")
			return nil, false
		}
	}
}

// readLoop returns when the connection fails or ctx is cancelled. conn is
// closed on return.
func (s *wsSubscription) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(stop)
		wg.Wait()
		if err := conn.Close(); err != nil {
			logging.Debug().Err(err).Msg("Failed to close websocket")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			if err := conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeWriteTimeout),
			); err != nil {
				logging.Debug().Err(err).Msg("Failed to send close message")
			}
			_ = conn.Close()
		case <-stop:
		}
	}()

	interval := s.transport.pingInterval
	if interval > 0 {
		extend := func() error { return conn.SetReadDeadline(time.Now().Add(2 * interval)) }
		if err := extend(); err != nil {
			return err
		}
		conn.SetPongHandler(func(string) error { return extend() })

		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(interval)); err != nil {
						logging.Debug().Err(err).Msg("Realtime ping failed")
						return
					}
				}
			}
		}()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if interval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * interval))
		}

		event, err := decodeEvent(data)
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
			return ctx.Err()
		}
	}
}
