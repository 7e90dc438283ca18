package streamclient

import (
	"context"
	"net"

	"github.com/cyberinferno/asyncstream/logger"
)

// ConnectCallback receives the outcome of BeginConnect: a usable connection
// or the dial error.
type ConnectCallback func(conn net.Conn, err error)

// BeginConnect starts an IPv4 TCP connection to addr on a new goroutine and
// returns immediately. onComplete runs exactly once on that goroutine.
// Cancelling ctx aborts the dial.
func (s *Session) BeginConnect(ctx context.Context, addr *net.TCPAddr, onComplete ConnectCallback) {
	s.log.Debug("connecting", logger.Field{Key: "addr", Value: addr.String()})

	go func() {
		conn, err := s.dialer.DialContext(ctx, "tcp4", addr.String())
		onComplete(conn, err)
	}()
}

// connectCallback installs the connection and completes connect-done last.
// A connection that arrives after the session already failed is closed.
func (s *Session) connectCallback(conn net.Conn, err error) {
	if err != nil {
		s.stageFailed(s.signals.ConnectDone, KindConnect, StageConnect, err)
		return
	}

	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		_ = conn.Close()
		s.log.Warn("late connection discarded", logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()})
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.log.Info("socket connected", logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()})
	s.signals.ConnectDone.Set()
}
