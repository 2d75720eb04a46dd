// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

const (
	// ErrConnectionClosed is returned for every call still pending
	// when the connection terminates.
	ErrConnectionClosed = errors.ConstError("connection closed")

	// ErrTargetClosed is returned when a call is made on a closed
	// connection or on a disposed object.
	ErrTargetClosed = errors.ConstError("target closed")
)

// IsClosed reports whether err was caused by the connection or its
// target going away.
func IsClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrTargetClosed)
}

// driverTimeoutName is the error name the driver uses for its own
// deadline failures.
const driverTimeoutName = "TimeoutError"

// DriverError is the structured failure returned by the driver for a
// call.
type DriverError struct {
	Method  string
	Message string
	Name    string
	Stack   string
}

// Error returns the driver's message unchanged.
func (e *DriverError) Error() string {
	return e.Message
}

// Is matches errors.Timeout when the driver reported its own timeout.
func (e *DriverError) Is(target error) bool {
	return target == errors.Timeout && e.Name == driverTimeoutName
}

// TimeoutError is returned when a call's local deadline elapses before
// a response arrives. The driver is not told; the operation may still
// complete remotely.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout %v exceeded calling %q", e.Timeout, e.Method)
}

// Is matches errors.Timeout.
func (e *TimeoutError) Is(target error) bool {
	return target == errors.Timeout
}

// ProtocolError describes an inbound message that violated the
// protocol. It is reported and the message dropped; the connection
// keeps running.
type ProtocolError struct {
	GUID   string
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("protocol violation: %v", e.Err)
	}
	return fmt.Sprintf("protocol violation: %s on %q: %v", e.Method, e.GUID, e.Err)
}

// Unwrap returns the underlying reason.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError is returned by Conn.Wait when the transport failed
// for a reason other than a clean close.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

// Unwrap returns the read error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ListenerError records a failed or panicking event listener.
type ListenerError struct {
	GUID   string
	Method string
	Err    error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener for %q on %q failed: %v", e.Method, e.GUID, e.Err)
}

// Unwrap returns the listener's error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}
