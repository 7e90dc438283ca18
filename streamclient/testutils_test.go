package streamclient

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cyberinferno/asyncstream/tcpserver"
	"github.com/stretchr/testify/require"
)

func startPeer(t *testing.T, config tcpserver.EchoConfig) *tcpserver.TCPServer {
	t.Helper()

	srv := tcpserver.NewTCPServer("peer", "127.0.0.1:0", nil, tcpserver.NewEchoSessionFunc(nil, config))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return srv
}

func startServer(t *testing.T, newSession tcpserver.NewSessionFunc) *tcpserver.TCPServer {
	t.Helper()

	srv := tcpserver.NewTCPServer("peer", "127.0.0.1:0", nil, newSession)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return srv
}

func configFor(srv *tcpserver.TCPServer) Config {
	port := srv.ListenAddr().(*net.TCPAddr).Port

	c := DefaultConfig("127.0.0.1", port)
	c.StageTimeout = 5 * time.Second
	c.AvailabilityWindow = 100 * time.Millisecond
	return c
}

// greeterSession writes a greeting on accept and closes.
type greeterSession struct {
	id       uint32
	conn     net.Conn
	greeting string
	once     sync.Once
}

func newGreeter(greeting string) tcpserver.NewSessionFunc {
	return func(id uint32, conn net.Conn) tcpserver.TCPServerSession {
		return &greeterSession{id: id, conn: conn, greeting: greeting}
	}
}

func (g *greeterSession) ID() uint32 { return g.id }

func (g *greeterSession) Handle() {
	_ = g.Send([]byte(g.greeting))
}

func (g *greeterSession) Close() error {
	var err error
	g.once.Do(func() { err = g.conn.Close() })
	return err
}

func (g *greeterSession) Send(data []byte) error {
	_, err := g.conn.Write(data)
	return err
}

type dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

type stubResolver struct {
	addr *net.TCPAddr
	err  error
}

func (r stubResolver) Resolve(ctx context.Context, host string, port int) (*net.TCPAddr, error) {
	return r.addr, r.err
}

var loopback = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DefaultPort}

// fakeConn swallows writes and can inject read or write failures.
type fakeConn struct {
	net.Conn
	writeErr error
	readErr  error
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}

	return len(p), nil
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}

	return c.Conn.Read(p)
}

func fakeDialer(t *testing.T, conn func(net.Conn) net.Conn) Dialer {
	t.Helper()

	return dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		client, server := net.Pipe()
		t.Cleanup(func() {
			_ = client.Close()
			_ = server.Close()
		})

		return conn(client), nil
	})
}
