// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"encoding/json"

	"github.com/juju/errors"

	"github.com/juju/driverrpc/rpc/params"
)

// handleMessage routes one inbound message. It runs only on the
// inbound loop.
func (conn *Conn) handleMessage(msg *params.Message) {
	switch {
	case msg.IsResponse():
		conn.handleResponse(msg)
	case msg.IsLifecycle():
		conn.handleLifecycle(msg)
	default:
		conn.handleEvent(msg)
	}
}

// handleLifecycle applies a create, dispose or adopt directive to the
// object tree.
func (conn *Conn) handleLifecycle(msg *params.Message) {
	switch msg.Method {
	case params.MethodCreate:
		conn.handleCreate(msg)
	case params.MethodDispose:
		conn.handleDispose(msg)
	case params.MethodAdopt:
		conn.handleAdopt(msg)
	}
}

func (conn *Conn) lifecycleViolation(msg *params.Message, err error) {
	conn.observer.MessageDropped(DropLifecycle)
	conn.report(&ProtocolError{GUID: msg.GUID, Method: msg.Method, Err: err})
}

func (conn *Conn) handleCreate(msg *params.Message) {
	var p params.CreateParams
	if err := decodeParams(msg.Params, &p); err != nil {
		conn.lifecycleViolation(msg, err)
		return
	}
	if p.GUID == "" {
		conn.lifecycleViolation(msg, errors.NotValidf("empty guid"))
		return
	}
	parent := msg.GUID
	if p.Parent != nil {
		parent = *p.Parent
	}
	ch := newChannel(conn, p.GUID, p.Type, p.Initializer)
	if err := conn.objects.create(parent, ch); err != nil {
		conn.lifecycleViolation(msg, err)
		return
	}
	conn.logger.Tracef("created %s %q under %q", p.Type, p.GUID, parent)
	conn.observer.ObjectCreated(p.Type)
}

func (conn *Conn) handleDispose(msg *params.Message) {
	var p params.DisposeParams
	if err := decodeParams(msg.Params, &p); err != nil {
		conn.lifecycleViolation(msg, err)
		return
	}
	removed, err := conn.objects.dispose(msg.GUID)
	if err != nil {
		conn.lifecycleViolation(msg, err)
		return
	}
	for _, ch := range removed {
		conn.disposed(ch, p.Reason)
	}
}

func (conn *Conn) handleAdopt(msg *params.Message) {
	var p params.AdoptParams
	if err := decodeParams(msg.Params, &p); err != nil {
		conn.lifecycleViolation(msg, err)
		return
	}
	newParent := msg.GUID
	if p.NewParent != nil {
		newParent = *p.NewParent
	}
	if err := conn.objects.adopt(p.GUID, newParent); err != nil {
		conn.lifecycleViolation(msg, err)
		return
	}
	conn.logger.Tracef("adopted %q into %q", p.GUID, newParent)
}

// disposed finishes the disposal of a channel already removed from
// the registry.
func (conn *Conn) disposed(ch *Channel, reason string) {
	for _, err := range ch.markDisposed(reason) {
		conn.report(err)
	}
	conn.logger.Tracef("disposed %s %q", ch.objType, ch.guid)
	conn.observer.ObjectDisposed(ch.objType)
}

func (conn *Conn) handleEvent(msg *params.Message) {
	ch, ok := conn.objects.get(msg.GUID)
	if !ok {
		// The object may have been disposed while the driver was
		// still emitting to it.
		conn.logger.Debugf("dropping %q event for unknown object %q", msg.Method, msg.GUID)
		conn.observer.MessageDropped(DropUnknownObject)
		return
	}
	for _, err := range ch.dispatch(msg.Method, msg.Params) {
		conn.report(err)
	}
}

func decodeParams(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return errors.Annotate(json.Unmarshal(data, v), "decoding params")
}
