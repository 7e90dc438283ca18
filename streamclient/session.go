// Package streamclient runs one point-to-point TCP exchange: resolve the
// endpoint, connect, send a payload, receive the reply and close.
//
// Connect, send and receive are asynchronous operations. Each runs on its own
// goroutine and finishes in a callback that completes a one-shot signal from
// package completion. The controlling goroutine blocks on those signals in
// turn, so the stages happen in strict connect, send, receive order and only
// one is ever in flight. A failed stage completes its signal with an error,
// and every wait is bounded by Config.StageTimeout, so failures end the
// session in the Failed state instead of hanging.
package streamclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/asyncstream/completion"
	"github.com/cyberinferno/asyncstream/idgenerator"
	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/perfmonitor"
	"github.com/cyberinferno/asyncstream/resolver"
	"github.com/cyberinferno/asyncstream/utils"
)

var sessionIDs = idgenerator.NewIdGenerator(0)

// Response is what a receive chain produced.
type Response struct {
	// Text is the extracted response.
	Text string
	// Raw is every byte read, in order.
	Raw []byte
	// Chunks holds the bytes of each read round that returned data.
	Chunks [][]byte
}

// Session is one connect, send, receive, close cycle. Its exported step
// methods must be called from a single controlling goroutine; the stage
// callbacks run elsewhere and only touch state behind mu.
type Session struct {
	id       uint32
	config   Config
	log      logger.Logger
	resolver resolver.Resolver
	dialer   Dialer
	signals  *completion.Coordinator

	mu            sync.RWMutex
	state         SessionState
	history       []SessionState
	addr          *net.TCPAddr
	conn          net.Conn
	bytesSent     int
	response      *Response
	err           error
	timings       map[Stage]time.Duration
	onStateChange StateChangeHandler

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session in the Init state. Nothing touches the
// network until Connect or Run.
//
// Parameters:
//   - config: Session settings, usually from DefaultConfig
//
// Returns:
//   - A new *Session
func NewSession(config Config) *Session {
	if config.Extractor == nil {
		config.Extractor = FirstLine
	}

	id := sessionIDs.Id()

	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.With(logger.Field{Key: "session_id", Value: id})

	r := config.Resolver
	if r == nil {
		r = resolver.NewDNSResolver(resolver.Config{Logger: log})
	}

	d := config.Dialer
	if d == nil {
		d = &net.Dialer{Timeout: config.ConnectionTimeout}
	}

	return &Session{
		id:       id,
		config:   config,
		log:      log,
		resolver: r,
		dialer:   d,
		signals:  completion.NewCoordinator(),
		state:    Init,
		history:  []SessionState{Init},
		timings:  make(map[Stage]time.Duration),
	}
}

// OnStateChange registers the handler for state transitions, replacing any
// previous one. Pass nil to clear it.
func (s *Session) OnStateChange(handler StateChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = handler
}

// Run performs the whole exchange: Connect, Transmit, Collect and Close.
//
// Parameters:
//   - ctx: Cancels waits and the dial
//   - payload: Bytes to send, possibly empty
//
// Returns:
//   - The response on success
//   - A *StageError (or ErrInvalidState) on failure; the session is then Failed
func (s *Session) Run(ctx context.Context, payload []byte) (*Response, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	if err := s.Transmit(ctx, payload); err != nil {
		return nil, err
	}

	resp, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.Close(); err != nil {
		return resp, err
	}

	return resp, nil
}

// RunString is Run with an ASCII-encoded text payload.
func (s *Session) RunString(ctx context.Context, text string) (*Response, error) {
	return s.Run(ctx, utils.EncodeASCII(text))
}

// Connect resolves the endpoint, starts the connection and waits for
// connect-done.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := s.transition(Resolving, nil); err != nil {
		return err
	}

	stop := s.timeStage(StageResolve)
	addr, err := s.resolver.Resolve(ctx, s.config.Host, s.config.Port)
	if err != nil {
		return s.fail(stageError(KindResolution, StageResolve, err))
	}
	stop()

	s.mu.Lock()
	s.addr = addr
	s.mu.Unlock()

	if err := s.transition(Connecting, nil); err != nil {
		return err
	}

	stageCtx, cancel := s.stageContext(ctx)
	defer cancel()

	stop = s.timeStage(StageConnect)
	s.BeginConnect(stageCtx, addr, s.connectCallback)
	if err := s.signals.ConnectDone.Wait(stageCtx); err != nil {
		return s.fail(stageError(KindConnect, StageConnect, err))
	}
	stop()

	return s.transition(Connected, nil)
}

// Transmit sends payload and waits for send-done. It must follow a
// successful Connect and may only be called once.
func (s *Session) Transmit(ctx context.Context, payload []byte) error {
	if err := s.transition(Sending, nil); err != nil {
		return err
	}

	stageCtx, cancel := s.stageContext(ctx)
	defer cancel()

	stop := s.timeStage(StageSend)
	s.Send(payload)
	if err := s.signals.SendDone.Wait(stageCtx); err != nil {
		return s.fail(stageError(KindWrite, StageSend, err))
	}
	stop()

	return s.transition(Sent, nil)
}

// Collect starts the receive chain and waits for receive-done. It must
// follow a successful Transmit.
func (s *Session) Collect(ctx context.Context) (*Response, error) {
	if err := s.transition(Receiving, nil); err != nil {
		return nil, err
	}

	stageCtx, cancel := s.stageContext(ctx)
	defer cancel()

	stop := s.timeStage(StageReceive)
	s.Receive()
	if err := s.signals.ReceiveDone.Wait(stageCtx); err != nil {
		return nil, s.fail(stageError(KindRead, StageReceive, err))
	}
	stop()

	if err := s.transition(Received, nil); err != nil {
		return nil, err
	}

	return s.Response(), nil
}

// Close releases the connection. After a received response the session
// becomes Closed; before that it becomes Failed with ErrSessionAborted.
// Closing a terminal session does nothing. A connection the peer already
// closed is not an error.
func (s *Session) Close() error {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	switch {
	case state.IsTerminal():
		return nil
	case state == Received:
		err := s.closeConn()
		if terr := s.transition(Closed, nil); terr != nil {
			return terr
		}

		s.log.Info("session closed")
		return err
	default:
		_ = s.fail(ErrSessionAborted)
		return nil
	}
}

// ID returns the session id used in logs.
func (s *Session) ID() uint32 {
	return s.id
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// States returns every state the session has been in, in order.
func (s *Session) States() []SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SessionState(nil), s.history...)
}

// Err returns the error that failed the session, or nil.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Response returns the received response, or nil before receive-done.
func (s *Session) Response() *Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.response
}

// RemoteAddr returns the resolved endpoint, or nil before resolution.
func (s *Session) RemoteAddr() *net.TCPAddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// BytesSent returns how many payload bytes were written.
func (s *Session) BytesSent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytesSent
}

// Timings returns the duration of every completed stage.
func (s *Session) Timings() map[Stage]time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Stage]time.Duration, len(s.timings))
	for k, v := range s.timings {
		out[k] = v
	}

	return out
}

// Signals exposes the session's completion signals.
func (s *Session) Signals() *completion.Coordinator {
	return s.signals
}

func (s *Session) connection() net.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *Session) terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsTerminal()
}

func (s *Session) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StageTimeout > 0 {
		return context.WithTimeout(ctx, s.config.StageTimeout)
	}

	return context.WithCancel(ctx)
}

// timeStage starts a monitor for stage; the returned func records it.
func (s *Session) timeStage(stage Stage) func() {
	pm := perfmonitor.NewPerformanceMonitor()
	pm.Start()

	return func() {
		pm.Stop()

		s.mu.Lock()
		s.timings[stage] = pm.Elapsed()
		s.mu.Unlock()

		s.log.Debug("stage completed",
			logger.Field{Key: "stage", Value: stage.String()},
			logger.Field{Key: "elapsed_ms", Value: pm.ElapsedMilliseconds()},
		)
	}
}

func (s *Session) transition(next SessionState, cause error) error {
	s.mu.Lock()
	prev := s.state
	if !prev.canTransition(next) {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, prev, next)
	}

	s.state = next
	s.history = append(s.history, next)
	handler := s.onStateChange
	s.mu.Unlock()

	s.log.Debug("state changed",
		logger.Field{Key: "from", Value: prev.String()},
		logger.Field{Key: "to", Value: next.String()},
	)

	if handler != nil {
		go handler(StateChangeEvent{
			SessionID: s.id,
			Previous:  prev,
			State:     next,
			Address:   s.config.Address(),
			Timestamp: time.Now(),
			Error:     cause,
		})
	}

	return nil
}

// fail moves the session to Failed, releases the connection and returns err.
func (s *Session) fail(err error) error {
	fields := []logger.Field{{Key: "error", Value: err.Error()}}
	if kind, ok := KindOf(err); ok {
		fields = append(fields, logger.Field{Key: "kind", Value: kind.String()})
	}
	s.log.Error("session failed", fields...)

	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()

	if terr := s.transition(Failed, err); terr != nil {
		s.log.Debug("fail on terminal session", logger.Field{Key: "error", Value: terr.Error()})
	}

	_ = s.closeConn()
	return err
}

// closeConn shuts the connection down in both directions and closes it,
// exactly once.
func (s *Session) closeConn() error {
	conn := s.connection()
	if conn == nil {
		return nil
	}

	s.closeOnce.Do(func() {
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
			_ = tc.CloseRead()
		}

		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	})

	return s.closeErr
}

// stageFailed reports a callback failure and completes signal with it.
func (s *Session) stageFailed(signal *completion.Signal, kind ErrorKind, stage Stage, err error) {
	serr := stageError(kind, stage, err)

	if s.terminal() {
		s.log.Debug("stage ended after session finished",
			logger.Field{Key: "stage", Value: stage.String()},
			logger.Field{Key: "error", Value: err.Error()},
		)
	} else {
		s.log.Error("stage failed",
			logger.Field{Key: "stage", Value: stage.String()},
			logger.Field{Key: "kind", Value: kind.String()},
			logger.Field{Key: "error", Value: err.Error()},
		)
	}

	signal.Fail(serr)
}
