// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package transport carries opaque frames between the client and
// the driver. It has no knowledge of the messages inside them.
package transport

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("driverrpc.transport")

// DefaultMaxFrameSize bounds the size of a single inbound frame.
const DefaultMaxFrameSize = 256 << 20

// ErrFrameTooLarge is returned by ReadFrame when the length prefix of
// an inbound frame exceeds the configured maximum.
const ErrFrameTooLarge = errors.ConstError("frame too large")

// Transport is a duplex frame stream connected to a driver.
//
// ReadFrame is only called from a single goroutine. WriteFrame may be
// called concurrently with ReadFrame. Close may be called at any time
// and must cause a blocked ReadFrame to return.
type Transport interface {
	// ReadFrame returns the next inbound frame, or io.EOF once the
	// peer has closed its side cleanly.
	ReadFrame() ([]byte, error)

	// WriteFrame writes one frame.
	WriteFrame(data []byte) error

	// Close releases the underlying stream.
	Close() error
}
