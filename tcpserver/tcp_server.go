// Package tcpserver runs a TCP listener that hands every accepted connection
// to a TCPServerSession. It ships with EchoSession, the cooperating peer used
// by the stream client's tests and by the "streamclient peer" command.
package tcpserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/asyncstream/idgenerator"
	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/safemap"
)

// NewSessionFunc builds the session that will own conn.
type NewSessionFunc func(id uint32, conn net.Conn) TCPServerSession

// TCPServer accepts connections on Addr and runs each one's session on its
// own goroutine. Live sessions are tracked by id until their Handle returns.
type TCPServer struct {
	Logger      logger.Logger
	Name        string
	Addr        string
	Listener    net.Listener
	Sessions    *safemap.SafeMap[uint32, TCPServerSession]
	Running     atomic.Bool
	NewSession  NewSessionFunc
	IdGenerator *idgenerator.IdGenerator

	wg sync.WaitGroup
}

// NewTCPServer returns a stopped server. A nil log discards output.
//
// Parameters:
//   - name: Used in log messages
//   - addr: Listen address, e.g. ":11000" or "127.0.0.1:0"
//   - log: Destination for server logs
//   - newSession: Builds the session for each accepted connection
//
// Returns:
//   - A *TCPServer ready for Start
func NewTCPServer(name, addr string, log logger.Logger, newSession NewSessionFunc) *TCPServer {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &TCPServer{
		Logger:      log.With(logger.Field{Key: "server", Value: name}),
		Name:        name,
		Addr:        addr,
		Sessions:    safemap.NewSafeMap[uint32, TCPServerSession](),
		NewSession:  newSession,
		IdGenerator: idgenerator.NewIdGenerator(0),
	}
}

// Start binds Addr and starts accepting in the background.
//
// Returns:
//   - An error if the server is already running or the listen fails
func (s *TCPServer) Start() error {
	if !s.Running.CompareAndSwap(false, true) {
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Running.Store(false)
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.Listener = ln
	s.Logger.Info("server started", logger.Field{Key: "addr", Value: ln.Addr().String()})

	s.wg.Add(1)
	go s.AcceptLoop()

	return nil
}

// ListenAddr returns the bound address, or nil before Start.
func (s *TCPServer) ListenAddr() net.Addr {
	if s.Listener == nil {
		return nil
	}

	return s.Listener.Addr()
}

// Stop closes the listener and every live session, then waits for the
// accept loop and all session goroutines to return. Safe to call when the
// server is not running.
func (s *TCPServer) Stop() {
	if !s.Running.CompareAndSwap(true, false) {
		return
	}

	_ = s.Listener.Close()

	s.Sessions.Range(func(id uint32, session TCPServerSession) bool {
		_ = session.Close()
		return true
	})

	s.wg.Wait()
	s.Logger.Info("server stopped")
}

// GetSession returns the live session with id.
func (s *TCPServer) GetSession(id uint32) (TCPServerSession, bool) {
	return s.Sessions.Load(id)
}

// SessionCount returns the number of live sessions.
func (s *TCPServer) SessionCount() int {
	return s.Sessions.Len()
}

// AcceptLoop accepts until the listener is closed. Run by Start.
func (s *TCPServer) AcceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if !s.Running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			s.Logger.Error("accept error", logger.Field{Key: "error", Value: err.Error()})
			continue
		}

		id := s.IdGenerator.Id()
		session := s.NewSession(id, conn)
		s.Sessions.Store(id, session)

		// Stop may have swept the sessions before this one was stored.
		if !s.Running.Load() {
			_ = session.Close()
		}

		s.wg.Add(1)
		go s.serve(id, session)
	}
}

func (s *TCPServer) serve(id uint32, session TCPServerSession) {
	defer s.wg.Done()

	session.Handle()

	s.Sessions.Delete(id)
	_ = session.Close()
}
