// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"time"
)

// Reasons passed to Observer.MessageDropped.
const (
	DropLateResponse  = "late-response"
	DropUnknownCall   = "unknown-call"
	DropUnknownObject = "unknown-object"
	DropMalformed     = "malformed"
	DropLifecycle     = "lifecycle"
)

// Observer is notified of traffic on a connection. Methods are called
// from the inbound loop or from calling goroutines and must not block.
type Observer interface {
	// CallCompleted is called once for every call with its outcome.
	CallCompleted(method string, duration time.Duration, err error)

	// ObjectCreated is called after a remote object is registered.
	ObjectCreated(objectType string)

	// ObjectDisposed is called after a remote object is removed.
	ObjectDisposed(objectType string)

	// MessageDropped is called when an inbound message is discarded.
	MessageDropped(reason string)
}

type nopObserver struct{}

func (nopObserver) CallCompleted(string, time.Duration, error) {}
func (nopObserver) ObjectCreated(string)                      {}
func (nopObserver) ObjectDisposed(string)                     {}
func (nopObserver) MessageDropped(string)                     {}
