// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/juju/driverrpc/rpc/params"
)

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout    time.Duration
	hasTimeout bool
}

// WithTimeout bounds how long the caller waits for a response. A
// timeout of zero or less waits indefinitely, overriding any default
// timeout of the connection.
func WithTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = timeout
		o.hasTimeout = true
	}
}

// Call invokes method on the remote object with the given guid and
// waits for the response. The result, if non-nil, must be a pointer
// into which the response result is decoded. The args are encoded as
// the call params; nil sends an empty object.
//
// Call fails with ErrTargetClosed if the connection is closing, a
// *DriverError if the driver returns an error, a *TimeoutError if the
// call's timeout elapses, the context's cause if the context is done,
// and ErrConnectionClosed if the connection terminates first.
func (conn *Conn) Call(ctx context.Context, guid, method string, args, result any, opts ...CallOption) error {
	// Do no work for a context that is already done.
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	o := callOptions{timeout: conn.defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	data, err := encodeArgs(args)
	if err != nil {
		return errors.Annotatef(err, "encoding %q params", method)
	}

	ctx, span := conn.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.guid", guid),
			attribute.String("rpc.method", method),
		),
	)
	defer span.End()

	started := conn.clock.Now()
	err = conn.call(ctx, guid, method, data, result, o.timeout)
	conn.observer.CallCompleted(method, conn.clock.Now().Sub(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (conn *Conn) call(ctx context.Context, guid, method string, data json.RawMessage, result any, timeout time.Duration) error {
	if conn.inFlight != nil {
		if err := conn.inFlight.Acquire(ctx, 1); err != nil {
			return context.Cause(ctx)
		}
		defer conn.inFlight.Release(1)
	}
	c := &call{
		Request: params.Request{
			GUID:   guid,
			Method: method,
			Params: data,
		},
		Done: make(chan *call, 1),
	}
	reqID := conn.send(c)
	if reqID == 0 {
		return c.Error
	}

	var timedOut <-chan time.Time
	if timeout > 0 {
		timer := conn.clock.NewTimer(timeout)
		defer timer.Stop()
		timedOut = timer.Chan()
	}
	select {
	case <-ctx.Done():
		if conn.pending.abandon(reqID) {
			conn.logger.Debugf("call %d %q abandoned: %v", reqID, method, context.Cause(ctx))
			return context.Cause(ctx)
		}
	case <-timedOut:
		if conn.pending.abandon(reqID) {
			conn.logger.Debugf("call %d %q timed out after %v", reqID, method, timeout)
			return &TimeoutError{Method: method, Timeout: timeout}
		}
	case reply := <-c.Done:
		return reply.outcome(result)
	}
	// The inbound loop took the call out of the table first, so its
	// completion is already on the way.
	reply := <-c.Done
	return reply.outcome(result)
}

// send registers the call and writes it to the codec. It returns the
// assigned id, or zero with c.Error set if the call was not sent.
func (conn *Conn) send(c *call) uint32 {
	conn.sending.Lock()
	defer conn.sending.Unlock()

	conn.mutex.Lock()
	if !conn.started {
		conn.mutex.Unlock()
		c.Error = errors.New("call made when connection not started")
		return 0
	}
	if conn.closing || conn.shutdown {
		conn.mutex.Unlock()
		c.Error = errors.Annotatef(ErrTargetClosed, "calling %q", c.Method)
		return 0
	}
	conn.reqID++
	c.ID = conn.reqID
	conn.pending.add(c)
	conn.mutex.Unlock()

	if err := conn.codec.WriteMessage(&c.Request); err != nil {
		if conn.pending.remove(c.ID) != nil {
			c.Error = errors.Annotatef(err, "sending %q", c.Method)
			return 0
		}
		// The inbound loop already failed the call during teardown.
	}
	return c.ID
}

// handleResponse completes the pending call that msg answers.
func (conn *Conn) handleResponse(msg *params.Message) {
	c := conn.pending.remove(msg.ID)
	if c == nil {
		if conn.pending.buried(msg.ID) {
			conn.logger.Debugf("discarding late response to call %d", msg.ID)
			conn.observer.MessageDropped(DropLateResponse)
			return
		}
		conn.observer.MessageDropped(DropUnknownCall)
		conn.report(&ProtocolError{
			Err: errors.NotFoundf("response to call %d", msg.ID),
		})
		return
	}
	if msg.Error != nil {
		c.Error = &DriverError{
			Method:  c.Method,
			Message: msg.Error.Message,
			Name:    msg.Error.Name,
			Stack:   msg.Error.Stack,
		}
	} else {
		c.Result = msg.Result
	}
	c.done(conn.logger)
}

// Initialize performs the initial handshake on the root object and
// returns the channel of the top-level object the driver creates.
func (conn *Conn) Initialize(ctx context.Context, sdkLanguage string) (*Channel, error) {
	var result params.InitializeResult
	err := conn.root.Call(ctx, "initialize", params.InitializeParams{SDKLanguage: sdkLanguage}, &result)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ch, ok := conn.objects.get(result.Playwright.GUID)
	if !ok {
		return nil, errors.NotFoundf("initialized object %q", result.Playwright.GUID)
	}
	return ch, nil
}

func encodeArgs(args any) (json.RawMessage, error) {
	switch v := args.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("{}"), nil
		}
		return v, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

func decodeResult(method string, data json.RawMessage, result any) error {
	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return errors.Annotatef(err, "decoding %q result", method)
	}
	return nil
}
