// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

// Websocket frames messages as websocket text messages, one JSON value
// per message, for drivers reachable through a ws:// endpoint.
type Websocket struct {
	conn *websocket.Conn

	// writeMu serializes writers; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// NewWebsocket wraps an established websocket connection.
func NewWebsocket(conn *websocket.Conn) *Websocket {
	return &Websocket{conn: conn}
}

// SetReadLimit bounds the size of an inbound message. Larger
// messages fail ReadFrame.
func (w *Websocket) SetReadLimit(n int64) {
	if n > 0 {
		w.conn.SetReadLimit(n)
	}
}

// ReadFrame implements Transport. A normal closure from the peer is
// reported as io.EOF.
func (w *Websocket) ReadFrame() ([]byte, error) {
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, errors.Trace(err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// WriteFrame implements Transport.
func (w *Websocket) WriteFrame(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return errors.Trace(w.conn.WriteMessage(websocket.TextMessage, data))
}

// Close implements Transport. It attempts a close handshake before
// dropping the connection, which releases any writer blocked on a
// peer that has stopped reading. It does not take writeMu: gorilla
// allows WriteControl and Close alongside a concurrent writer.
func (w *Websocket) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeHandshakeTimeout))
	return errors.Trace(w.conn.Close())
}

// closeHandshakeTimeout bounds the wait for the close message to be
// written, including behind a stalled writer.
const closeHandshakeTimeout = time.Second

const defaultDialDelay = 250 * time.Millisecond

// DialConfig holds the parameters for DialWebsocket.
type DialConfig struct {
	// URL is the ws:// or wss:// endpoint of the driver.
	URL string

	// Header is sent with the opening handshake.
	Header http.Header

	// Attempts is the number of dial attempts; zero means 1.
	Attempts int

	// Delay is the pause between attempts; zero means 250ms.
	Delay time.Duration

	// Clock is used for the delay between attempts.
	Clock clock.Clock

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Validate returns an error if the config cannot be used to dial.
func (cfg DialConfig) Validate() error {
	if cfg.URL == "" {
		return errors.NotValidf("empty URL")
	}
	if cfg.Attempts < 0 {
		return errors.NotValidf("negative Attempts")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// DialWebsocket connects to a driver websocket endpoint, retrying
// failed handshakes as configured.
func DialWebsocket(ctx context.Context, cfg DialConfig) (*Websocket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = defaultDialDelay
	}

	var conn *websocket.Conn
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			c, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err != nil {
				return errors.Trace(err)
			}
			conn = c
			return nil
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("dial %s attempt %d failed: %v", cfg.URL, attempt, err)
		},
		Attempts: attempts,
		Delay:    delay,
		Clock:    cfg.Clock,
		Stop:     ctx.Done(),
	})
	if err != nil {
		return nil, errors.Annotatef(retry.LastError(err), "dialing %s", cfg.URL)
	}
	return NewWebsocket(conn), nil
}
