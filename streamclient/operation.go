package streamclient

import (
	"bytes"
	"net"

	"github.com/cyberinferno/asyncstream/utils"
)

// Chunk is the data of one read round, copied out of the scratch buffer.
type Chunk struct {
	Round int
	Data  []byte
}

// operation is the state of one asynchronous send or receive. It belongs to
// the call that created it and the callbacks that complete it; chained reads
// hand it from goroutine to goroutine, never sharing it concurrently.
type operation struct {
	conn    net.Conn
	stream  *stream
	scratch []byte

	payload []byte
	written int

	rounds int
	chunks []Chunk
}

func newOperation(conn net.Conn, bufferSize int) *operation {
	return &operation{
		conn:    conn,
		scratch: make([]byte, bufferSize),
	}
}

// record starts a new round and keeps the n bytes it read.
func (op *operation) record(n int) {
	op.rounds++
	if n <= 0 {
		return
	}

	data := make([]byte, n)
	copy(data, op.scratch[:n])
	op.chunks = append(op.chunks, Chunk{Round: op.rounds, Data: data})
}

func (op *operation) chunkData() [][]byte {
	out := make([][]byte, len(op.chunks))
	for i, c := range op.chunks {
		out[i] = c.Data
	}

	return out
}

// accumulated joins every recorded chunk.
func (op *operation) accumulated() []byte {
	return utils.JoinBytes(op.chunkData()...)
}

func (op *operation) contains(delim []byte) bool {
	return bytes.Contains(op.accumulated(), delim)
}
