// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package rpctest provides a scriptable fake driver that speaks the
// object channel protocol over a real transport.
package rpctest

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/tomb.v2"

	"github.com/juju/driverrpc/rpc/params"
	"github.com/juju/driverrpc/transport"
)

var logger = loggo.GetLogger("driverrpc.rpc.rpctest")

// ErrNoReply may be returned by a Handler to leave the request
// unanswered. The test can answer it later with Reply or ReplyError.
const ErrNoReply = errors.ConstError("no reply")

// Handler answers one request. Returning a *params.ErrorInfo sends an
// error response carrying it; any other error is sent as a plain
// error response.
type Handler func(req params.Request) (any, error)

// Driver is a fake driver. It answers requests with the handler
// registered for their method and lets the test send events and
// lifecycle directives at any time.
type Driver struct {
	tomb tomb.Tomb
	t    transport.Transport

	mu       sync.Mutex
	handlers map[string]Handler
	requests []params.Request
	held     chan params.Request
}

// NewPipe returns the client and driver ends of an in-memory stream.
func NewPipe() (client, driver *transport.Stream) {
	c, d := net.Pipe()
	return transport.NewStreamConn(c), transport.NewStreamConn(d)
}

// NewDriver starts a driver serving requests read from t.
func NewDriver(t transport.Transport) *Driver {
	d := &Driver{
		t:        t,
		handlers: make(map[string]Handler),
		held:     make(chan params.Request, 100),
	}
	d.tomb.Go(d.loop)
	return d
}

// Handle sets the handler for requests with the given method.
func (d *Driver) Handle(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

// HandleResult answers every request for method with result.
func (d *Driver) HandleResult(method string, result any) {
	d.Handle(method, func(params.Request) (any, error) {
		return result, nil
	})
}

// Hold leaves requests for method unanswered and makes them available
// from Held.
func (d *Driver) Hold(method string) {
	d.Handle(method, func(params.Request) (any, error) {
		return nil, ErrNoReply
	})
}

// Held returns the requests left unanswered by Hold.
func (d *Driver) Held() <-chan params.Request {
	return d.held
}

// Requests returns every request received so far, in order.
func (d *Driver) Requests() []params.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]params.Request(nil), d.requests...)
}

// Reply sends a successful response to call id.
func (d *Driver) Reply(id uint32, result any) error {
	data, err := marshal(result)
	if err != nil {
		return errors.Trace(err)
	}
	return d.send(map[string]any{"id": id, "result": data})
}

// ReplyError sends an error response to call id.
func (d *Driver) ReplyError(id uint32, info params.ErrorInfo) error {
	return d.send(map[string]any{"id": id, "error": info})
}

// Emit sends an event to the object with the given guid.
func (d *Driver) Emit(guid, method string, p any) error {
	data, err := marshal(p)
	if err != nil {
		return errors.Trace(err)
	}
	return d.send(map[string]any{"guid": guid, "method": method, "params": data})
}

// Create tells the client about a new object of the given type under
// parent. An empty guid is replaced by a generated one, which is
// returned.
func (d *Driver) Create(parent, objType, guid string, initializer any) (string, error) {
	if guid == "" {
		guid = fmt.Sprintf("%s@%s", objType, uuid.NewString())
	}
	p := params.CreateParams{GUID: guid, Type: objType}
	if initializer != nil {
		data, err := marshal(initializer)
		if err != nil {
			return "", errors.Trace(err)
		}
		p.Initializer = data
	}
	return guid, d.Emit(parent, params.MethodCreate, p)
}

// Dispose tells the client that the object and its subtree are gone.
func (d *Driver) Dispose(guid, reason string) error {
	return d.Emit(guid, params.MethodDispose, params.DisposeParams{Reason: reason})
}

// Adopt moves the object under newParent.
func (d *Driver) Adopt(guid, newParent string) error {
	return d.Emit(newParent, params.MethodAdopt, params.AdoptParams{GUID: guid})
}

// SendRaw writes an arbitrary frame.
func (d *Driver) SendRaw(frame []byte) error {
	return errors.Trace(d.t.WriteFrame(frame))
}

// Close closes the driver's end of the transport, which the client
// sees as the driver exiting.
func (d *Driver) Close() error {
	d.tomb.Kill(nil)
	err := d.t.Close()
	_ = d.tomb.Wait()
	return errors.Trace(err)
}

// Wait blocks until the driver stops reading requests, which happens
// when the client closes its end of the transport.
func (d *Driver) Wait() error {
	return d.tomb.Wait()
}

func (d *Driver) send(msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(d.t.WriteFrame(data))
}

func (d *Driver) loop() error {
	for {
		frame, err := d.t.ReadFrame()
		if err != nil {
			if err != io.EOF && d.tomb.Alive() {
				logger.Debugf("driver read failed: %v", err)
			}
			return nil
		}
		var req params.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			return errors.Annotate(err, "decoding request")
		}
		if err := d.handle(req); err != nil {
			if d.tomb.Alive() {
				logger.Debugf("driver write failed: %v", err)
			}
			return nil
		}
	}
}

func (d *Driver) handle(req params.Request) error {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	h := d.handlers[req.Method]
	d.mu.Unlock()

	if h == nil {
		return d.ReplyError(req.ID, params.ErrorInfo{
			Message: fmt.Sprintf("unknown method %q", req.Method),
			Name:    "Error",
		})
	}
	result, err := h(req)
	var info *params.ErrorInfo
	switch {
	case err == ErrNoReply:
		d.held <- req
		return nil
	case errors.As(err, &info):
		return d.ReplyError(req.ID, *info)
	case err != nil:
		return d.ReplyError(req.ID, params.ErrorInfo{Message: err.Error(), Name: "Error"})
	}
	return d.Reply(req.ID, result)
}

func marshal(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	return data, errors.Trace(err)
}
