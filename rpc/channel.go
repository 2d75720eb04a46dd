// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/juju/errors"
)

// Listener handles one event. A returned error is reported through
// the connection's diagnostics; it does not stop other listeners.
type Listener func(params json.RawMessage) error

// Channel is the client-side proxy of one remote object. All traffic
// goes through the connection that created it.
type Channel struct {
	conn        *Conn
	guid        string
	objType     string
	initializer json.RawMessage

	mu            sync.Mutex
	listeners     map[string][]Listener
	disposeHooks  []func(reason string)
	disposed      chan struct{}
	isDisposed    bool
	disposeReason string
}

func newChannel(conn *Conn, guid, objType string, initializer json.RawMessage) *Channel {
	return &Channel{
		conn:        conn,
		guid:        guid,
		objType:     objType,
		initializer: initializer,
		listeners:   make(map[string][]Listener),
		disposed:    make(chan struct{}),
	}
}

// GUID returns the guid of the remote object.
func (ch *Channel) GUID() string {
	return ch.guid
}

// Type returns the type name the driver created the object with.
func (ch *Channel) Type() string {
	return ch.objType
}

// Initializer returns the initial state sent with the object's
// creation.
func (ch *Channel) Initializer() json.RawMessage {
	return ch.initializer
}

// DecodeInitializer decodes the initializer into v.
func (ch *Channel) DecodeInitializer(v any) error {
	if len(ch.initializer) == 0 {
		return nil
	}
	return errors.Annotatef(json.Unmarshal(ch.initializer, v), "decoding %s initializer", ch.objType)
}

// Parent returns the current parent of the object. The root and
// disposed objects have none.
func (ch *Channel) Parent() (*Channel, bool) {
	return ch.conn.objects.parent(ch.guid)
}

// Children returns the live children of the object.
func (ch *Channel) Children() []*Channel {
	return ch.conn.objects.children(ch.guid)
}

// Call invokes method on the remote object. See Conn.Call.
func (ch *Channel) Call(ctx context.Context, method string, args, result any, opts ...CallOption) error {
	if ch.IsDisposed() {
		return errors.Annotatef(ErrTargetClosed, "calling %q on %s %q", method, ch.objType, ch.guid)
	}
	return ch.conn.Call(ctx, ch.guid, method, args, result, opts...)
}

// On appends a listener for events with the given method name.
// Listeners run on the inbound loop in the order they were added, so
// they must not block on calls to the same connection. Listeners added
// after the object is disposed are never run.
func (ch *Channel) On(method string, l Listener) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.isDisposed {
		return
	}
	ch.listeners[method] = append(ch.listeners[method], l)
}

// OnDispose adds a hook run once when the object is disposed. If the
// object is already disposed the hook is not run.
func (ch *Channel) OnDispose(hook func(reason string)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.isDisposed {
		return
	}
	ch.disposeHooks = append(ch.disposeHooks, hook)
}

// Disposed returns a channel that is closed when the object is
// disposed.
func (ch *Channel) Disposed() <-chan struct{} {
	return ch.disposed
}

// IsDisposed reports whether the object has been disposed.
func (ch *Channel) IsDisposed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.isDisposed
}

// DisposeReason returns the reason given by the driver when it
// disposed the object, if any.
func (ch *Channel) DisposeReason() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.disposeReason
}

// dispatch runs the listeners for method, returning their failures.
func (ch *Channel) dispatch(method string, params json.RawMessage) []error {
	ch.mu.Lock()
	if ch.isDisposed {
		ch.mu.Unlock()
		return nil
	}
	listeners := ch.listeners[method]
	ch.mu.Unlock()

	var failures []error
	for _, l := range listeners {
		if err := invoke(func() error { return l(params) }); err != nil {
			failures = append(failures, &ListenerError{GUID: ch.guid, Method: method, Err: err})
		}
	}
	return failures
}

// markDisposed closes the channel and runs its dispose hooks.
func (ch *Channel) markDisposed(reason string) []error {
	ch.mu.Lock()
	if ch.isDisposed {
		ch.mu.Unlock()
		return nil
	}
	ch.isDisposed = true
	ch.disposeReason = reason
	hooks := ch.disposeHooks
	ch.disposeHooks = nil
	ch.listeners = nil
	close(ch.disposed)
	ch.mu.Unlock()

	var failures []error
	for _, hook := range hooks {
		if err := invoke(func() error { hook(reason); return nil }); err != nil {
			failures = append(failures, &ListenerError{GUID: ch.guid, Method: "dispose", Err: err})
		}
	}
	return failures
}

// invoke calls f, turning a panic into an error.
func invoke(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return f()
}

// Subscribe adds a listener that decodes event params into T before
// calling fn.
func Subscribe[T any](ch *Channel, method string, fn func(T) error) {
	ch.On(method, func(data json.RawMessage) error {
		var v T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &v); err != nil {
				return errors.Annotatef(err, "decoding %q params", method)
			}
		}
		return fn(v)
	})
}
