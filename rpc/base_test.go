// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc_test

import (
	"sync"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/driverrpc/internal/testhelpers"
	"github.com/juju/driverrpc/rpc"
	"github.com/juju/driverrpc/rpc/jsoncodec"
	"github.com/juju/driverrpc/rpc/rpctest"
	"github.com/juju/driverrpc/transport"
)

type baseSuite struct {
	testing.IsolationSuite

	clock       *testclock.Clock
	clientEnd   *transport.Stream
	driver      *rpctest.Driver
	conn        *rpc.Conn
	diagnostics *diagnostics
}

func (s *baseSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.clock = testclock.NewClock(time.Time{})
	s.diagnostics = &diagnostics{}

	var driverEnd *transport.Stream
	s.clientEnd, driverEnd = rpctest.NewPipe()
	s.driver = rpctest.NewDriver(driverEnd)
	s.driver.HandleResult("sync", nil)
}

func (s *baseSuite) TearDownTest(c *gc.C) {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	_ = s.driver.Close()
	s.IsolationSuite.TearDownTest(c)
}

// startConn starts a connection to the suite's driver.
func (s *baseSuite) startConn(c *gc.C, observer rpc.Observer) *rpc.Conn {
	conn, err := rpc.NewConn(rpc.Config{
		Codec:       jsoncodec.New(s.clientEnd),
		Clock:       s.clock,
		Observer:    observer,
		Diagnostics: s.diagnostics.add,
	})
	c.Assert(err, jc.ErrorIsNil)
	conn.Start()
	s.conn = conn
	return conn
}

// sync makes a call and waits for its response. As inbound messages
// are handled in order, every message the driver sent before
// answering has been handled when sync returns.
func (s *baseSuite) sync(c *gc.C) {
	ctx, cancel := testhelpers.Context()
	defer cancel()
	err := s.conn.Root().Call(ctx, "sync", nil, nil)
	c.Assert(err, jc.ErrorIsNil)
}

// create creates an object and waits until the client has it.
func (s *baseSuite) create(c *gc.C, parent, objType, guid string) *rpc.Channel {
	_, err := s.driver.Create(parent, objType, guid, nil)
	c.Assert(err, jc.ErrorIsNil)
	s.sync(c)
	ch, ok := s.conn.Object(guid)
	c.Assert(ok, jc.IsTrue)
	return ch
}

// diagnostics records errors reported by a connection.
type diagnostics struct {
	mu     sync.Mutex
	errors []error
}

func (d *diagnostics) add(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, err)
}

func (d *diagnostics) get() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errors...)
}
