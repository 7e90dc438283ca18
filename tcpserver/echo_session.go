package tcpserver

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/utils"
)

// EchoConfig shapes how an EchoSession writes data back.
type EchoConfig struct {
	// ReadBufferSize is the size of each read; defaults to 1024.
	ReadBufferSize int
	// ChunkSize splits each echo into writes of at most this many bytes; 0
	// writes what was read in one piece.
	ChunkSize int
	// ChunkDelay is slept before every chunk after the first, simulating a
	// slow sender.
	ChunkDelay time.Duration
	// CloseAfterEcho closes the connection once the first read has been
	// echoed.
	CloseAfterEcho bool
	// Silent reads but never answers.
	Silent bool
}

// EchoSession writes every byte it reads back to the sender.
type EchoSession struct {
	id     uint32
	conn   net.Conn
	config EchoConfig
	log    logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewEchoSessionFunc returns a NewSessionFunc producing EchoSessions.
func NewEchoSessionFunc(log logger.Logger, config EchoConfig) NewSessionFunc {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 1024
	}

	return func(id uint32, conn net.Conn) TCPServerSession {
		return &EchoSession{
			id:     id,
			conn:   conn,
			config: config,
			log: log.With(
				logger.Field{Key: "peer_session", Value: id},
				logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()},
			),
		}
	}
}

// ID implements TCPServerSession.
func (e *EchoSession) ID() uint32 {
	return e.id
}

// Handle implements TCPServerSession.
func (e *EchoSession) Handle() {
	e.log.Debug("peer connection accepted")
	buf := make([]byte, e.config.ReadBufferSize)

	for {
		n, err := e.conn.Read(buf)
		if n > 0 && !e.config.Silent {
			if werr := e.echo(buf[:n]); werr != nil {
				e.log.Warn("echo write failed", logger.Field{Key: "error", Value: werr.Error()})
				return
			}

			if e.config.CloseAfterEcho {
				e.log.Debug("closing after echo")
				return
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				e.log.Warn("peer read failed", logger.Field{Key: "error", Value: err.Error()})
			}

			return
		}
	}
}

func (e *EchoSession) echo(data []byte) error {
	for i, chunk := range utils.SplitBytes(data, e.config.ChunkSize) {
		if i > 0 && e.config.ChunkDelay > 0 {
			time.Sleep(e.config.ChunkDelay)
		}

		if err := e.Send(chunk); err != nil {
			return err
		}
	}

	e.log.Debug("echoed", logger.Field{Key: "bytes", Value: len(data)})
	return nil
}

// Send implements TCPServerSession.
func (e *EchoSession) Send(data []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	_, err := e.conn.Write(data)
	return err
}

// Close implements TCPServerSession.
func (e *EchoSession) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
	})

	return e.closeErr
}
