// Package resolver turns a host name and port into a connectable IPv4 TCP
// address. Lookups can be cached through a cacher.Cacher so repeated sessions
// against the same host skip DNS.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cyberinferno/asyncstream/cacher"
	"github.com/cyberinferno/asyncstream/logger"
)

var (
	// ErrNoIPv4Address is returned when a host resolves only to non-IPv4 addresses.
	ErrNoIPv4Address = errors.New("no IPv4 address found")
	// ErrInvalidPort is returned for ports outside 1-65535.
	ErrInvalidPort = errors.New("invalid port")
)

// ResolutionError describes a failed Resolve call.
type ResolutionError struct {
	Host string
	Port int
	Err  error
}

// Error implements error.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Err)
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver resolves a host/port pair into a TCP address.
type Resolver interface {
	Resolve(ctx context.Context, host string, port int) (*net.TCPAddr, error)
}

// LookupFunc looks up the addresses of host.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Config configures a DNSResolver.
type Config struct {
	// Lookup performs the address lookup; nil means net.DefaultResolver.LookupIPAddr.
	Lookup LookupFunc
	// Cache stores resolved IPv4 addresses as strings; nil disables caching.
	Cache cacher.Cacher[string]
	// CacheTTL is how long a resolved address stays cached.
	CacheTTL time.Duration
	// Logger receives debug output; nil silences it.
	Logger logger.Logger
}

// DNSResolver resolves host names with the system resolver and picks the first
// IPv4 address. It never retries.
type DNSResolver struct {
	lookup LookupFunc
	cache  cacher.Cacher[string]
	ttl    time.Duration
	log    logger.Logger
}

// NewDNSResolver creates a resolver from config.
//
// Parameters:
//   - config: Lookup function, optional cache and logger
//
// Returns:
//   - A ready-to-use *DNSResolver
func NewDNSResolver(config Config) *DNSResolver {
	r := &DNSResolver{
		lookup: config.Lookup,
		cache:  config.Cache,
		ttl:    config.CacheTTL,
		log:    config.Logger,
	}

	if r.lookup == nil {
		r.lookup = net.DefaultResolver.LookupIPAddr
	}

	if r.log == nil {
		r.log = logger.NewNopLogger()
	}

	return r
}

// Resolve returns the first IPv4 address of host combined with port.
//
// Parameters:
//   - ctx: Bounds the lookup
//   - host: Host name or IP literal
//   - port: TCP port, 1-65535
//
// Returns:
//   - The resolved address
//   - A *ResolutionError wrapping ErrInvalidPort, ErrNoIPv4Address or the lookup failure
func (r *DNSResolver) Resolve(ctx context.Context, host string, port int) (*net.TCPAddr, error) {
	if port < 1 || port > 65535 {
		return nil, &ResolutionError{Host: host, Port: port, Err: ErrInvalidPort}
	}

	var (
		ip  string
		err error
	)

	if r.cache != nil {
		ip, err = r.cache.GetOrFetch(ctx, host, r.ttl, func(ctx context.Context) (string, error) {
			return r.firstIPv4(ctx, host)
		})
	} else {
		ip, err = r.firstIPv4(ctx, host)
	}

	if err != nil {
		return nil, &ResolutionError{Host: host, Port: port, Err: err}
	}

	addr := &net.TCPAddr{IP: net.ParseIP(ip).To4(), Port: port}
	r.log.Debug("endpoint resolved",
		logger.Field{Key: "host", Value: host},
		logger.Field{Key: "addr", Value: addr.String()},
	)

	return addr, nil
}

// Forget drops host from the cache so the next Resolve performs a fresh lookup.
func (r *DNSResolver) Forget(ctx context.Context, host string) error {
	if r.cache == nil {
		return nil
	}

	return r.cache.Delete(ctx, host)
}

func (r *DNSResolver) firstIPv4(ctx context.Context, host string) (string, error) {
	addrs, err := r.lookup(ctx, host)
	if err != nil {
		return "", err
	}

	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}

	return "", ErrNoIPv4Address
}
