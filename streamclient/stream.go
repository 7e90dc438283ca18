package streamclient

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// stream is an operation-scoped view over the connection. It owns the
// deadlines it sets and is released, never reused, once its operation ends.
type stream struct {
	conn     net.Conn
	r        *bufio.Reader
	released atomic.Bool
}

func newStream(conn net.Conn, bufferSize int) *stream {
	return &stream{
		conn: conn,
		r:    bufio.NewReaderSize(conn, bufferSize),
	}
}

// Write writes all of p, looping over short writes.
func (s *stream) Write(p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}

	total := 0
	for total < len(p) {
		n, err := s.conn.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}

		if n == 0 {
			return total, io.ErrShortWrite
		}
	}

	return total, nil
}

// Read reads one round into p.
func (s *stream) Read(p []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return 0, io.EOF
		}

		return 0, err
	}

	return s.r.Read(p)
}

// minAvailabilityWindow keeps the probe deadline in the future so bytes
// already queued on the connection are still seen.
const minAvailabilityWindow = time.Millisecond

// DataAvailable reports whether more bytes can be read right away: either
// they are already buffered, or one byte arrives within window. End of stream
// and a connection closed under the probe count as no data.
func (s *stream) DataAvailable(window time.Duration) (bool, error) {
	if s.r.Buffered() > 0 {
		return true, nil
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(max(window, minAvailabilityWindow))); err != nil {
		if closedConn(err) {
			return false, nil
		}

		return false, err
	}

	if _, err := s.r.Peek(1); err != nil {
		if isTimeout(err) || errors.Is(err, io.EOF) || closedConn(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// Release clears the deadlines this stream set. Safe to call more than once.
func (s *stream) Release() {
	if s.released.CompareAndSwap(false, true) {
		_ = s.conn.SetDeadline(time.Time{})
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func closedConn(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}
