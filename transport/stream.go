// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"github.com/juju/errors"
)

// prefixSize is the size of the little-endian length prefix.
const prefixSize = 4

// Stream frames messages over a byte stream such as the stdio pipes of
// a driver process. Each frame is a 4-byte little-endian length
// followed by that many bytes of payload.
type Stream struct {
	r       *bufio.Reader
	maxSize uint32

	mu sync.Mutex
	w  io.Writer

	closer io.Closer
}

// NewStream returns a Stream reading from r and writing to w. Closing
// the stream closes c, which may be nil.
func NewStream(r io.Reader, w io.Writer, c io.Closer) *Stream {
	return &Stream{
		r:       bufio.NewReader(r),
		w:       w,
		closer:  c,
		maxSize: DefaultMaxFrameSize,
	}
}

// NewStreamConn returns a Stream over a single read-write connection.
func NewStreamConn(conn io.ReadWriteCloser) *Stream {
	return NewStream(conn, conn, conn)
}

// SetMaxFrameSize changes the largest frame ReadFrame will accept. It
// must be called before the stream is in use.
func (s *Stream) SetMaxFrameSize(n uint32) {
	if n > 0 {
		s.maxSize = n
	}
}

// ReadFrame implements Transport.
func (s *Stream) ReadFrame() ([]byte, error) {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(s.r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Annotate(err, "reading frame length")
	}
	length := binary.LittleEndian.Uint32(prefix[:])
	if length > s.maxSize {
		return nil, errors.Annotatef(ErrFrameTooLarge, "%d bytes exceeds limit of %d", length, s.maxSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, errors.Annotatef(err, "reading %d byte frame", length)
	}
	return buf, nil
}

// WriteFrame implements Transport. The prefix and payload are written
// in a single call so frames from concurrent writers never interleave.
func (s *Stream) WriteFrame(data []byte) error {
	buf := make([]byte, prefixSize+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[prefixSize:], data)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(buf)
	return errors.Trace(err)
}

// Close implements Transport.
func (s *Stream) Close() error {
	if s.closer == nil {
		return nil
	}
	return errors.Trace(s.closer.Close())
}
