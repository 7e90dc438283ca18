package tcpserver

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T, config EchoConfig) *TCPServer {
	t.Helper()

	srv := NewTCPServer("echo", "127.0.0.1:0", nil, NewEchoSessionFunc(nil, config))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return srv
}

func dial(t *testing.T, srv *TCPServer) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", srv.ListenAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestTCPServer_StartStop(t *testing.T) {
	t.Run("start binds an address", func(t *testing.T) {
		srv := NewTCPServer("echo", "127.0.0.1:0", nil, NewEchoSessionFunc(nil, EchoConfig{}))
		assert.Nil(t, srv.ListenAddr())

		require.NoError(t, srv.Start())
		assert.True(t, srv.Running.Load())
		assert.NotNil(t, srv.ListenAddr())

		srv.Stop()
		assert.False(t, srv.Running.Load())
	})

	t.Run("second start fails", func(t *testing.T) {
		srv := startEchoServer(t, EchoConfig{})
		assert.Error(t, srv.Start())
	})

	t.Run("stop when not running is a no-op", func(t *testing.T) {
		srv := NewTCPServer("echo", "127.0.0.1:0", nil, NewEchoSessionFunc(nil, EchoConfig{}))
		srv.Stop()
	})

	t.Run("listen failure is reported", func(t *testing.T) {
		srv := startEchoServer(t, EchoConfig{})

		other := NewTCPServer("dup", srv.ListenAddr().String(), nil, NewEchoSessionFunc(nil, EchoConfig{}))
		assert.Error(t, other.Start())
		assert.False(t, other.Running.Load())
	})
}

func TestEchoSession_Echo(t *testing.T) {
	srv := startEchoServer(t, EchoConfig{})
	conn := dial(t, srv)

	_, err := conn.Write([]byte("hello\n"))
	require.NoError(t, err)

	buf := make([]byte, 6)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(buf))

	assert.Eventually(t, func() bool { return srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
	_, ok := srv.GetSession(1)
	assert.True(t, ok)
}

func TestEchoSession_Chunked(t *testing.T) {
	srv := startEchoServer(t, EchoConfig{ChunkSize: 2, ChunkDelay: 20 * time.Millisecond})
	conn := dial(t, srv)

	start := time.Now()
	_, err := conn.Write([]byte("abcdef"))
	require.NoError(t, err)

	buf := make([]byte, 6)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(buf))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestEchoSession_CloseAfterEcho(t *testing.T) {
	srv := startEchoServer(t, EchoConfig{CloseAfterEcho: true})
	conn := dial(t, srv)

	_, err := conn.Write([]byte("bye"))
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(data))

	assert.Eventually(t, func() bool { return srv.SessionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEchoSession_Silent(t *testing.T) {
	srv := startEchoServer(t, EchoConfig{Silent: true})
	conn := dial(t, srv)

	_, err := conn.Write([]byte("anyone?"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, err = conn.Read(make([]byte, 8))
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestTCPServer_StopClosesSessions(t *testing.T) {
	srv := NewTCPServer("echo", "127.0.0.1:0", nil, NewEchoSessionFunc(nil, EchoConfig{}))
	require.NoError(t, srv.Start())

	conn, err := net.Dial("tcp", srv.ListenAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)

	srv.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
