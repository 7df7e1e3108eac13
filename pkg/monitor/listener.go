// Package monitor follows a running limiter through its status API.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrGaveUp = errors.New("status API unreachable")

type listener struct {
	baseRetryDelay time.Duration
	maxRetryDelay  time.Duration
	maxRetries     uint64
	readTimeout    time.Duration
	logger         zerolog.Logger
}

type Option func(*listener)

// WithRetry sets the reconnect delays and how many consecutive failed
// attempts are made before giving up.
func WithRetry(base, maxDelay time.Duration, retries uint64) Option {
	return func(l *listener) {
		l.baseRetryDelay = base
		l.maxRetryDelay = maxDelay
		l.maxRetries = retries
	}
}

// WithReadTimeout sets how long a connection may stay silent. It should be
// a few times the cycle interval.
func WithReadTimeout(d time.Duration) Option {
	return func(l *listener) { l.readTimeout = d }
}

// StartListener connects to the /ws feed of host and calls handle for every
// snapshot received. Lost connections are retried with exponential backoff.
// It returns nil when ctx is cancelled and ErrGaveUp when retries run out.
func StartListener(ctx context.Context, host string, handle func(*types.CycleSnapshot), opts ...Option) error {
	l := &listener{
		baseRetryDelay: 2 * time.Second,
		maxRetryDelay:  60 * time.Second,
		maxRetries:     10,
		readTimeout:    30 * time.Second,
		logger:         log.With().Str("component", "monitor").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	for {
		var conn *websocket.Conn
		connect := func() error {
			l.logger.Info().Str("url", u.String()).Msg("Connecting")
			c, _, err := dialer.DialContext(ctx, u.String(), nil)
			if err != nil {
				return err
			}
			conn = c
			return nil
		}
		notify := func(err error, wait time.Duration) {
			l.logger.Warn().Err(err).Dur("retry_in", wait).Msg("Connection failed")
		}

		if err := backoff.RetryNotify(connect, l.newBackOff(ctx), notify); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, l.maxRetries+1, err)
		}

		l.logger.Info().Msg("Connected, receiving cycles")
		broken := l.handleConnection(ctx, conn, handle)
		conn.Close()
		if !broken {
			return nil
		}
		l.logger.Warn().Msg("Connection lost, will retry")
	}
}

func (l *listener) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = l.baseRetryDelay
	exp.MaxInterval = l.maxRetryDelay
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, l.maxRetries), ctx)
}

// handleConnection reads until the connection breaks (true) or ctx is
// cancelled (false).
func (l *listener) handleConnection(ctx context.Context, c *websocket.Conn, handle func(*types.CycleSnapshot)) bool {
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			c.SetReadDeadline(time.Now().Add(l.readTimeout))
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					l.logger.Warn().Err(err).Msg("WebSocket error")
				} else {
					l.logger.Info().Err(err).Msg("Connection closed")
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if s := types.SnapshotFromJsonBytes(message); s != nil {
				handle(s)
			} else {
				l.logger.Warn().Str("message", string(message)).Msg("Failed to parse cycle snapshot")
			}
		}
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			l.logger.Debug().Err(err).Msg("Sending close message failed")
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return false
	}
}
