package streamclient

import (
	"errors"
	"io"

	"github.com/cyberinferno/asyncstream/logger"
)

// Receive starts the read chain on a new goroutine and returns immediately.
// Each round reads at most Config.BufferSize bytes; the chain continues while
// the termination rule asks for more, then receive-done completes.
func (s *Session) Receive() {
	conn := s.connection()
	if conn == nil {
		s.stageFailed(s.signals.ReceiveDone, KindRead, StageReceive, ErrNotConnected)
		return
	}

	op := newOperation(conn, s.config.BufferSize)
	op.stream = newStream(conn, s.config.BufferSize)

	go s.beginRead(op)
}

func (s *Session) beginRead(op *operation) {
	n, err := op.stream.Read(op.scratch, s.config.ReadTimeout)
	s.receiveCallback(op, n, err)
}

// receiveCallback records the round, chains another read when more data is
// wanted, and otherwise finishes the receive. End of stream finishes the
// chain normally.
func (s *Session) receiveCallback(op *operation, n int, err error) {
	op.record(n)

	if err != nil && !errors.Is(err, io.EOF) {
		op.stream.Release()
		s.stageFailed(s.signals.ReceiveDone, KindRead, StageReceive, err)
		return
	}

	if err == nil {
		more, perr := s.wantMore(op)
		if perr != nil {
			op.stream.Release()
			s.stageFailed(s.signals.ReceiveDone, KindRead, StageReceive, perr)
			return
		}

		if more {
			go s.beginRead(op)
			return
		}
	}

	s.finishReceive(op)
}

func (s *Session) wantMore(op *operation) (bool, error) {
	if s.config.Termination == UntilDelimiter {
		return !op.contains(s.config.Delimiter), nil
	}

	return op.stream.DataAvailable(s.config.AvailabilityWindow)
}

// finishReceive extracts the response, releases the read stream and
// completes receive-done last.
func (s *Session) finishReceive(op *operation) {
	if s.terminal() {
		op.stream.Release()
		s.log.Debug("receive ended after session finished", logger.Field{Key: "rounds", Value: op.rounds})
		return
	}

	data := op.accumulated()
	resp := &Response{
		Text:   s.config.Extractor.Extract(data),
		Raw:    data,
		Chunks: op.chunkData(),
	}

	op.stream.Release()

	s.mu.Lock()
	s.response = resp
	s.mu.Unlock()

	s.log.Info("response received",
		logger.Field{Key: "bytes", Value: len(data)},
		logger.Field{Key: "rounds", Value: op.rounds},
		logger.Field{Key: "chunks", Value: len(resp.Chunks)},
	)
	s.signals.ReceiveDone.Set()
}
