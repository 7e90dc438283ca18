package tcpserver

// TCPServerSession owns one accepted connection.
type TCPServerSession interface {
	// ID returns the id assigned by the server.
	ID() uint32

	// Handle serves the connection until it ends. The server runs it on its
	// own goroutine and closes the session when it returns.
	Handle()

	// Close closes the connection. Safe to call more than once.
	Close() error

	// Send writes data to the connection.
	Send(data []byte) error
}
