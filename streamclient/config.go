package streamclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/resolver"
)

const (
	// DefaultHost is the endpoint used when none is configured.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the endpoint port used when none is configured.
	DefaultPort = 11000
	// DefaultBufferSize is the scratch buffer size of one read or write chunk.
	DefaultBufferSize = 1024
)

// Termination decides when a receive chain stops.
type Termination int

const (
	// UntilIdle stops once no more data is immediately available.
	UntilIdle Termination = iota
	// UntilDelimiter keeps reading until the accumulated bytes contain
	// Config.Delimiter or the peer closes.
	UntilDelimiter
)

// String returns the termination's name.
func (t Termination) String() string {
	switch t {
	case UntilIdle:
		return "idle"
	case UntilDelimiter:
		return "delimiter"
	default:
		return "unknown"
	}
}

// ParseTermination maps "idle" or "delimiter" to a Termination.
func ParseTermination(name string) (Termination, error) {
	switch name {
	case "", "idle":
		return UntilIdle, nil
	case "delimiter":
		return UntilDelimiter, nil
	default:
		return 0, fmt.Errorf("unknown termination %q", name)
	}
}

// Dialer opens the raw byte stream. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds settings for one session.
type Config struct {
	// Host is the host name or IPv4 literal to connect to.
	Host string
	// Port is the TCP port to connect to.
	Port int
	// BufferSize is the scratch buffer size per read round.
	BufferSize int
	// ConnectionTimeout bounds the dial; 0 means no dialer timeout.
	ConnectionTimeout time.Duration
	// WriteTimeout bounds the payload write; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadTimeout bounds each read round; 0 means no timeout.
	ReadTimeout time.Duration
	// StageTimeout bounds each wait of the controlling flow; 0 waits forever.
	StageTimeout time.Duration
	// AvailabilityWindow is how long a probe waits before deciding that no
	// more data is immediately available. 0 only sees data that has already
	// arrived.
	AvailabilityWindow time.Duration
	// Termination selects the rule ending a receive chain.
	Termination Termination
	// Delimiter ends the chain under UntilDelimiter.
	Delimiter []byte
	// Extractor turns the accumulated bytes into the response text; nil
	// means FirstLine.
	Extractor ResponseExtractor

	// Resolver resolves Host; nil means a resolver.DNSResolver without cache.
	Resolver resolver.Resolver
	// Dialer opens the connection; nil means a net.Dialer using ConnectionTimeout.
	Dialer Dialer
	// Logger receives session logs; nil discards them.
	Logger logger.Logger
}

// DefaultConfig returns a Config with defaults for host and port: 1024 byte
// buffer, 10s connection and write timeouts, no read timeout, 30s stage
// timeout, 50ms availability window, idle termination and first-line
// extraction.
func DefaultConfig(host string, port int) Config {
	return Config{
		Host:               host,
		Port:               port,
		BufferSize:         DefaultBufferSize,
		ConnectionTimeout:  10 * time.Second,
		WriteTimeout:       10 * time.Second,
		ReadTimeout:        0,
		StageTimeout:       30 * time.Second,
		AvailabilityWindow: 50 * time.Millisecond,
		Termination:        UntilIdle,
		Extractor:          FirstLine,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.BufferSize < 1 {
		return fmt.Errorf("buffer size %d must be positive", c.BufferSize)
	}

	if c.ConnectionTimeout < 0 || c.WriteTimeout < 0 || c.ReadTimeout < 0 ||
		c.StageTimeout < 0 || c.AvailabilityWindow < 0 {
		return errors.New("timeouts must not be negative")
	}

	switch c.Termination {
	case UntilIdle:
	case UntilDelimiter:
		if len(c.Delimiter) == 0 {
			return errors.New("delimiter termination needs a delimiter")
		}
	default:
		return fmt.Errorf("unknown termination %d", c.Termination)
	}

	return nil
}

// Address returns "host:port".
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
