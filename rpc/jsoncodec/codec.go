// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package jsoncodec encodes and decodes driver messages as one JSON
// value per transport frame.
package jsoncodec

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/driverrpc/rpc/params"
	"github.com/juju/driverrpc/transport"
)

var logger = loggo.GetLogger("driverrpc.rpc.jsoncodec")

// MalformedError is returned by ReadMessage when a frame was read
// successfully but does not hold a valid message. The stream itself
// is still usable.
type MalformedError struct {
	Frame []byte
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed message %q: %v", truncate(e.Frame, 128), e.Err)
}

// Is reports whether target is params.ErrMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == params.ErrMalformed
}

// Unwrap returns the decoding error.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Codec implements rpc.Codec over a transport.Transport.
type Codec struct {
	t transport.Transport

	mu      sync.Mutex
	closing bool
}

// New returns a codec that reads and writes messages on t.
func New(t transport.Transport) *Codec {
	return &Codec{t: t}
}

func (c *Codec) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// ReadMessage reads the next message into m. It returns io.EOF when
// the peer finished cleanly or the codec has been closed.
func (c *Codec) ReadMessage(m *params.Message) error {
	data, err := c.t.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) || c.isClosing() {
			return io.EOF
		}
		return errors.Annotate(err, "cannot read message")
	}
	if logger.IsTraceEnabled() {
		logger.Tracef("<- %s", data)
	}
	*m = params.Message{}
	if err := json.Unmarshal(data, m); err != nil {
		return &MalformedError{Frame: data, Err: err}
	}
	return nil
}

// WriteMessage encodes req and writes it as a single frame.
func (c *Codec) WriteMessage(req *params.Request) error {
	if len(req.Params) == 0 {
		req.Params = json.RawMessage("{}")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return errors.Annotatef(err, "cannot encode %q request", req.Method)
	}
	if logger.IsTraceEnabled() {
		logger.Tracef("-> %s", data)
	}
	return errors.Annotate(c.t.WriteFrame(data), "cannot write message")
}

// Close closes the underlying transport. Any blocked ReadMessage
// returns io.EOF.
func (c *Codec) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	return errors.Trace(c.t.Close())
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
