// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params holds the wire shapes exchanged with the driver.
package params

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Reserved method names used by the driver to manage the lifecycle of
// remote objects.
const (
	MethodCreate  = "__create__"
	MethodDispose = "__dispose__"
	MethodAdopt   = "__adopt__"
)

// ErrMalformed is matched by errors from codecs that read a frame
// which does not hold a valid message.
const ErrMalformed = errors.ConstError("malformed message")

// RootGUID is the guid of the implicit root object that every
// connection starts with.
const RootGUID = ""

// Request is a call sent to the driver. All four fields are always
// written, including an empty guid for calls on the root.
type Request struct {
	ID     uint32          `json:"id"`
	GUID   string          `json:"guid"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Message is any message received from the driver. A message with a
// non-zero ID is a response to a previous Request; otherwise it is an
// event addressed to GUID.
type Message struct {
	ID     uint32          `json:"id,omitempty"`
	GUID   string          `json:"guid,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorInfo      `json:"error,omitempty"`
}

// IsResponse reports whether the message answers a call. Call ids
// start at 1, so a zero id means the field was absent.
func (m *Message) IsResponse() bool {
	return m.ID != 0
}

// IsLifecycle reports whether the message is a create, dispose or
// adopt directive.
func (m *Message) IsLifecycle() bool {
	switch m.Method {
	case MethodCreate, MethodDispose, MethodAdopt:
		return true
	}
	return false
}

// CreateParams holds the params of a __create__ directive. The event
// guid names the parent unless Parent is set.
type CreateParams struct {
	GUID        string          `json:"guid"`
	Type        string          `json:"type"`
	Initializer json.RawMessage `json:"initializer,omitempty"`
	Parent      *string         `json:"parent,omitempty"`
}

// DisposeParams holds the params of a __dispose__ directive.
type DisposeParams struct {
	Reason string `json:"reason,omitempty"`
}

// AdoptParams holds the params of an __adopt__ directive. The event
// guid names the new parent unless NewParent is set.
type AdoptParams struct {
	GUID      string  `json:"guid"`
	NewParent *string `json:"newParent,omitempty"`
}

// ObjectRef is how results and event params refer to remote objects.
type ObjectRef struct {
	GUID string `json:"guid"`
}

// InitializeParams are sent with the initialize call on the root.
type InitializeParams struct {
	SDKLanguage string `json:"sdkLanguage"`
}

// InitializeResult is returned by the initialize call.
type InitializeResult struct {
	Playwright ObjectRef `json:"playwright"`
}
