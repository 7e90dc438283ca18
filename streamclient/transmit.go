package streamclient

import (
	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/utils"
)

// Send writes payload to the connection on a new goroutine and returns
// immediately; send-done completes once every byte is queued or the write
// fails. An empty payload completes without touching the connection.
func (s *Session) Send(payload []byte) {
	conn := s.connection()
	if conn == nil {
		s.stageFailed(s.signals.SendDone, KindWrite, StageSend, ErrNotConnected)
		return
	}

	op := newOperation(conn, s.config.BufferSize)
	op.payload = payload

	go s.beginWrite(op)
}

// SendString is Send with text encoded as ASCII.
func (s *Session) SendString(text string) {
	s.Send(utils.EncodeASCII(text))
}

func (s *Session) beginWrite(op *operation) {
	if len(op.payload) == 0 {
		s.sendCallback(op, nil)
		return
	}

	op.stream = newStream(op.conn, s.config.BufferSize)
	n, err := op.stream.Write(op.payload, s.config.WriteTimeout)
	op.written = n
	s.sendCallback(op, err)
}

// sendCallback releases the write stream and completes send-done last.
func (s *Session) sendCallback(op *operation, err error) {
	if op.stream != nil {
		op.stream.Release()
	}

	if err != nil {
		s.stageFailed(s.signals.SendDone, KindWrite, StageSend, err)
		return
	}

	s.mu.Lock()
	s.bytesSent = op.written
	s.mu.Unlock()

	s.log.Debug("payload sent", logger.Field{Key: "bytes", Value: op.written})
	s.signals.SendDone.Set()
}
