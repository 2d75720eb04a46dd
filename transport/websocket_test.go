// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/driverrpc/internal/testhelpers"
	"github.com/juju/driverrpc/transport"
)

type websocketSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&websocketSuite{})

// echoServer returns a server that echoes every text message and
// closes normally after receiving "bye".
func echoServer(c *gc.C) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			c.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (s *websocketSuite) TestEcho(c *gc.C) {
	srv := echoServer(c)
	defer srv.Close()

	ws, err := transport.DialWebsocket(context.Background(), transport.DialConfig{
		URL:   wsURL(srv),
		Clock: clock.WallClock,
	})
	c.Assert(err, jc.ErrorIsNil)
	defer ws.Close()

	c.Assert(ws.WriteFrame([]byte(`{"id":1}`)), jc.ErrorIsNil)
	data, err := ws.ReadFrame()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, `{"id":1}`)

	c.Assert(ws.WriteFrame([]byte("bye")), jc.ErrorIsNil)
	_, err = ws.ReadFrame()
	c.Assert(err, gc.Equals, io.EOF)
}

func (s *websocketSuite) TestDialFailure(c *gc.C) {
	srv := echoServer(c)
	url := wsURL(srv)
	srv.Close()

	_, err := transport.DialWebsocket(context.Background(), transport.DialConfig{
		URL:      url,
		Attempts: 2,
		Delay:    time.Millisecond,
		Clock:    clock.WallClock,
	})
	c.Assert(err, gc.ErrorMatches, `dialing ws://.*`)
}

func (s *websocketSuite) TestDialConfigValidate(c *gc.C) {
	_, err := transport.DialWebsocket(context.Background(), transport.DialConfig{Clock: clock.WallClock})
	c.Assert(err, jc.ErrorIs, errors.NotValid)

	_, err = transport.DialWebsocket(context.Background(), transport.DialConfig{URL: "ws://x"})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

// stalledServer returns a server that accepts a websocket connection
// and never reads from it until release is closed.
func stalledServer(c *gc.C, release <-chan struct{}) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			c.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		<-release
	}))
}

func (s *websocketSuite) TestCloseReleasesStalledWriter(c *gc.C) {
	release := make(chan struct{})
	srv := stalledServer(c, release)
	defer srv.Close()
	defer close(release)

	ws, err := transport.DialWebsocket(context.Background(), transport.DialConfig{
		URL:   wsURL(srv),
		Clock: clock.WallClock,
	})
	c.Assert(err, jc.ErrorIsNil)

	frame := []byte(strings.Repeat("x", 1<<20))
	wrote := make(chan struct{}, 1)
	writerDone := make(chan error, 1)
	go func() {
		for {
			if err := ws.WriteFrame(frame); err != nil {
				writerDone <- err
				return
			}
			select {
			case wrote <- struct{}{}:
			default:
			}
		}
	}()

	// Wait until the writer is blocked on the peer.
	deadline := time.After(testhelpers.LongWait)
	for stalled := false; !stalled; {
		select {
		case <-wrote:
		case <-time.After(testhelpers.ShortWait):
			stalled = true
		case <-deadline:
			c.Fatalf("writer never stalled")
		}
	}

	closed := make(chan struct{})
	go func() {
		_ = ws.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(testhelpers.LongWait):
		c.Fatalf("Close blocked behind a stalled writer")
	}
	select {
	case err := <-writerDone:
		c.Check(err, gc.NotNil)
	case <-time.After(testhelpers.LongWait):
		c.Fatalf("stalled writer not released by Close")
	}
}
