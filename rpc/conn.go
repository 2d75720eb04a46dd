// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package rpc implements the client side of the driver's object
// channel protocol. A Conn multiplexes calls to remote objects over a
// single codec, correlates their responses, and maintains the tree of
// remote objects the driver creates, adopts and disposes.
package rpc

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/worker/v4"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"
	"gopkg.in/tomb.v2"

	"github.com/juju/driverrpc/rpc/params"
)

// RootType is the type of the implicit root object.
const RootType = "Root"

// Codec reads and writes driver messages. ReadMessage is only called
// from the inbound loop; WriteMessage is never called concurrently
// with itself. Close must cause a blocked ReadMessage to return.
type Codec interface {
	// ReadMessage reads the next message, returning io.EOF once the
	// stream is finished. Errors matching params.ErrMalformed mean the
	// frame was unusable but the stream may continue.
	ReadMessage(*params.Message) error

	// WriteMessage writes a single request.
	WriteMessage(*params.Request) error

	// Close closes the codec.
	Close() error
}

// Logger is the logging interface used by a Conn.
type Logger interface {
	Errorf(string, ...any)
	Warningf(string, ...any)
	Infof(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
	IsTraceEnabled() bool
}

// Config holds the dependencies of a Conn.
type Config struct {
	// Codec carries messages to and from the driver.
	Codec Codec

	// Clock is used for call timeouts. Defaults to the wall clock.
	Clock clock.Clock

	// Logger defaults to the "driverrpc.rpc" loggo logger.
	Logger Logger

	// Observer, if set, is told about calls, objects and dropped
	// messages.
	Observer Observer

	// Tracer, if set, is used to start a span for every call.
	Tracer trace.Tracer

	// DefaultTimeout applies to calls that do not set their own.
	// Zero means calls wait until answered or cancelled.
	DefaultTimeout time.Duration

	// MaxInFlight, if positive, bounds the number of calls awaiting a
	// response. Further calls wait for a slot or for their context.
	MaxInFlight int

	// Diagnostics, if set, receives errors which do not belong to
	// any caller: protocol violations and listener failures.
	Diagnostics func(error)
}

// Validate returns an error if the config cannot be used for a Conn.
func (cfg Config) Validate() error {
	if cfg.Codec == nil {
		return errors.NotValidf("nil Codec")
	}
	if cfg.DefaultTimeout < 0 {
		return errors.NotValidf("negative DefaultTimeout")
	}
	if cfg.MaxInFlight < 0 {
		return errors.NotValidf("negative MaxInFlight")
	}
	return nil
}

// Conn is a connection to a driver. Calls may be made from many
// goroutines at once; all inbound messages are handled by a single
// loop, strictly in arrival order.
type Conn struct {
	codec          Codec
	clock          clock.Clock
	logger         Logger
	observer       Observer
	tracer         trace.Tracer
	diagnostics    func(error)
	defaultTimeout time.Duration

	// inFlight is nil when calls are not limited.
	inFlight *semaphore.Weighted

	tomb tomb.Tomb

	// sending guards the write side of the codec. It is held across
	// id assignment, pending registration and the write, so that a
	// response can never be read before its call is registered.
	sending sync.Mutex

	// mutex guards the following values.
	mutex sync.Mutex

	// reqID holds the latest call id.
	reqID uint32

	// started is set once the inbound loop has been launched.
	started bool

	// closing is set by Kill. No new calls are sent once set.
	closing bool

	// shutdown is set when the inbound loop terminates.
	shutdown bool

	pending *pendingTable
	objects *registry
	root    *Channel
}

var _ worker.Worker = (*Conn)(nil)

// NewConn returns a connection using the given config. Start must be
// called before calls can be made.
func NewConn(cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	conn := &Conn{
		codec:          cfg.Codec,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		observer:       cfg.Observer,
		tracer:         cfg.Tracer,
		diagnostics:    cfg.Diagnostics,
		defaultTimeout: cfg.DefaultTimeout,
		pending:        newPendingTable(),
	}
	if cfg.MaxInFlight > 0 {
		conn.inFlight = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	if conn.clock == nil {
		conn.clock = clock.WallClock
	}
	if conn.logger == nil {
		conn.logger = loggo.GetLogger("driverrpc.rpc")
	}
	if conn.observer == nil {
		conn.observer = nopObserver{}
	}
	if conn.tracer == nil {
		conn.tracer = noop.NewTracerProvider().Tracer("")
	}
	conn.root = newChannel(conn, params.RootGUID, RootType, nil)
	conn.objects = newRegistry(conn.root)
	return conn, nil
}

// Start starts the inbound loop. It has no effect if the connection
// has already been started.
func (conn *Conn) Start() {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if conn.started {
		return
	}
	conn.started = true
	conn.tomb.Go(conn.input)
}

// Kill implements worker.Worker. It closes the codec, which ends the
// inbound loop; pending calls then fail with ErrConnectionClosed.
func (conn *Conn) Kill() {
	conn.mutex.Lock()
	alreadyClosing := conn.closing
	conn.closing = true
	conn.mutex.Unlock()

	// Wait needs a running loop to return.
	conn.Start()
	conn.tomb.Kill(nil)
	if alreadyClosing {
		return
	}
	if err := conn.codec.Close(); err != nil {
		conn.logger.Debugf("error closing codec: %v", err)
	}
}

// Wait implements worker.Worker. It returns nil if the connection
// ended with a clean close, and a *TransportError otherwise.
func (conn *Conn) Wait() error {
	return conn.tomb.Wait()
}

// Close kills the connection and waits for it to terminate.
func (conn *Conn) Close() error {
	conn.Kill()
	return conn.Wait()
}

// Dead returns a channel that is closed once the inbound loop has
// terminated, every pending call has failed and every object has been
// disposed.
func (conn *Conn) Dead() <-chan struct{} {
	return conn.tomb.Dead()
}

// Root returns the channel of the root object.
func (conn *Conn) Root() *Channel {
	return conn.root
}

// Object returns the channel of the live object with the given guid.
func (conn *Conn) Object(guid string) (*Channel, bool) {
	return conn.objects.get(guid)
}

// Resolve returns the channel referred to by an encoded
// params.ObjectRef, such as a field of a call result.
func (conn *Conn) Resolve(data json.RawMessage) (*Channel, error) {
	var ref params.ObjectRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, errors.Annotate(err, "decoding object reference")
	}
	ch, ok := conn.objects.get(ref.GUID)
	if !ok {
		return nil, errors.NotFoundf("object %q", ref.GUID)
	}
	return ch, nil
}

// input runs the inbound loop, then tears the connection down.
func (conn *Conn) input() error {
	err := conn.loop()

	// Closing the codec first releases any writer blocked on a
	// transport the driver has stopped reading.
	conn.mutex.Lock()
	closing := conn.closing
	conn.mutex.Unlock()
	if !closing {
		if cerr := conn.codec.Close(); cerr != nil {
			conn.logger.Debugf("error closing codec: %v", cerr)
		}
	}

	conn.sending.Lock()
	conn.mutex.Lock()
	conn.shutdown = true
	conn.mutex.Unlock()
	conn.sending.Unlock()

	if closing {
		err = nil
	}
	if err != nil {
		conn.logger.Errorf("connection terminated: %v", err)
	} else {
		conn.logger.Debugf("connection closed")
	}

	for _, call := range conn.pending.drain() {
		call.Error = errors.Annotatef(ErrConnectionClosed, "calling %q", call.Method)
		call.done(conn.logger)
	}
	for _, ch := range conn.objects.disposeAll() {
		conn.disposed(ch, "")
	}
	return err
}

// loop reads and handles messages until the codec ends.
func (conn *Conn) loop() error {
	for {
		var msg params.Message
		err := conn.codec.ReadMessage(&msg)
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, params.ErrMalformed):
			conn.observer.MessageDropped(DropMalformed)
			conn.report(&ProtocolError{Err: err})
			continue
		case err != nil:
			return &TransportError{Err: err}
		}
		conn.handleMessage(&msg)
	}
}

// report logs an error that has no caller to return it to and passes
// it to the configured diagnostics hook.
func (conn *Conn) report(err error) {
	switch err.(type) {
	case *ListenerError:
		conn.logger.Errorf("%v", err)
	default:
		conn.logger.Warningf("%v", err)
	}
	if conn.diagnostics != nil {
		conn.diagnostics(err)
	}
}
