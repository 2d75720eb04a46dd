// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/driverrpc/transport"
)

type streamSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&streamSuite{})

func (s *streamSuite) TestWriteFramePrefix(c *gc.C) {
	var buf bytes.Buffer
	stream := transport.NewStream(&buf, &buf, nil)

	err := stream.WriteFrame([]byte(`{"id":1}`))
	c.Assert(err, jc.ErrorIsNil)

	data := buf.Bytes()
	c.Assert(data, gc.HasLen, 4+8)
	c.Check(binary.LittleEndian.Uint32(data[:4]), gc.Equals, uint32(8))
	c.Check(string(data[4:]), gc.Equals, `{"id":1}`)
}

func (s *streamSuite) TestRoundTrip(c *gc.C) {
	var buf bytes.Buffer
	stream := transport.NewStream(&buf, &buf, nil)

	for _, frame := range []string{`{"a":1}`, ``, `{"b":"two"}`} {
		c.Assert(stream.WriteFrame([]byte(frame)), jc.ErrorIsNil)
	}
	for _, expect := range []string{`{"a":1}`, ``, `{"b":"two"}`} {
		data, err := stream.ReadFrame()
		c.Assert(err, jc.ErrorIsNil)
		c.Check(string(data), gc.Equals, expect)
	}
	_, err := stream.ReadFrame()
	c.Assert(err, gc.Equals, io.EOF)
}

func (s *streamSuite) TestTruncatedFrame(c *gc.C) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(10))
	buf.WriteString("short")
	stream := transport.NewStream(&buf, io.Discard, nil)

	_, err := stream.ReadFrame()
	c.Assert(err, jc.ErrorIs, io.ErrUnexpectedEOF)
}

func (s *streamSuite) TestFrameTooLarge(c *gc.C) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1024))
	stream := transport.NewStream(&buf, io.Discard, nil)
	stream.SetMaxFrameSize(512)

	_, err := stream.ReadFrame()
	c.Assert(errors.Is(err, transport.ErrFrameTooLarge), jc.IsTrue)
	c.Check(err, gc.ErrorMatches, `1024 bytes exceeds limit of 512: frame too large`)
}

func (s *streamSuite) TestConcurrentWritersDoNotInterleave(c *gc.C) {
	client, server := net.Pipe()
	defer server.Close()
	writer := transport.NewStreamConn(client)
	reader := transport.NewStreamConn(server)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = writer.WriteFrame(bytes.Repeat([]byte("x"), 100))
		}()
	}
	for i := 0; i < n; i++ {
		data, err := reader.ReadFrame()
		c.Assert(err, jc.ErrorIsNil)
		c.Assert(data, gc.HasLen, 100)
	}
	wg.Wait()
	c.Assert(writer.Close(), jc.ErrorIsNil)

	_, err := reader.ReadFrame()
	c.Assert(err, gc.Equals, io.EOF)
}
