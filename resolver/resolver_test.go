package resolver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyberinferno/asyncstream/cacher"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticLookup(addrs ...string) LookupFunc {
	return func(ctx context.Context, host string) ([]net.IPAddr, error) {
		out := make([]net.IPAddr, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, net.IPAddr{IP: net.ParseIP(a)})
		}

		return out, nil
	}
}

func TestDNSResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("picks the first IPv4 address", func(t *testing.T) {
		r := NewDNSResolver(Config{Lookup: staticLookup("::1", "10.0.0.7", "10.0.0.8")})

		addr, err := r.Resolve(ctx, "peer.local", 11000)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.7:11000", addr.String())
		assert.Len(t, addr.IP, net.IPv4len)
	})

	t.Run("IPv6-only host fails with ErrNoIPv4Address", func(t *testing.T) {
		r := NewDNSResolver(Config{Lookup: staticLookup("::1", "fe80::1")})

		addr, err := r.Resolve(ctx, "v6only.local", 11000)
		assert.Nil(t, addr)
		assert.ErrorIs(t, err, ErrNoIPv4Address)

		var resErr *ResolutionError
		require.True(t, errors.As(err, &resErr))
		assert.Equal(t, "v6only.local", resErr.Host)
		assert.Equal(t, 11000, resErr.Port)
	})

	t.Run("lookup failure is wrapped", func(t *testing.T) {
		r := NewDNSResolver(Config{Lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
			return nil, assert.AnError
		}})

		_, err := r.Resolve(ctx, "unknown.invalid", 11000)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "unknown.invalid:11000")
	})

	t.Run("invalid port is rejected before lookup", func(t *testing.T) {
		called := false
		r := NewDNSResolver(Config{Lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
			called = true
			return nil, nil
		}})

		_, err := r.Resolve(ctx, "localhost", 0)
		assert.ErrorIs(t, err, ErrInvalidPort)
		_, err = r.Resolve(ctx, "localhost", 70000)
		assert.ErrorIs(t, err, ErrInvalidPort)
		assert.False(t, called)
	})

	t.Run("IP literal resolves with the default lookup", func(t *testing.T) {
		r := NewDNSResolver(Config{})

		addr, err := r.Resolve(ctx, "127.0.0.1", 11000)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:11000", addr.String())
	})
}

func TestDNSResolver_Cache(t *testing.T) {
	ctx := context.Background()
	var lookups atomic.Int32

	r := NewDNSResolver(Config{
		Lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
			lookups.Add(1)
			return []net.IPAddr{{IP: net.ParseIP("10.1.1.1")}}, nil
		},
		Cache:    cacher.NewMemoryCacher[string](cache.NoExpiration, time.Minute),
		CacheTTL: time.Minute,
	})

	t.Run("repeated resolves share one lookup", func(t *testing.T) {
		for range 3 {
			addr, err := r.Resolve(ctx, "cached.local", 11000)
			require.NoError(t, err)
			assert.Equal(t, "10.1.1.1:11000", addr.String())
		}
		assert.Equal(t, int32(1), lookups.Load())
	})

	t.Run("cached address is combined with the requested port", func(t *testing.T) {
		addr, err := r.Resolve(ctx, "cached.local", 9000)
		require.NoError(t, err)
		assert.Equal(t, "10.1.1.1:9000", addr.String())
		assert.Equal(t, int32(1), lookups.Load())
	})

	t.Run("forget forces a new lookup", func(t *testing.T) {
		require.NoError(t, r.Forget(ctx, "cached.local"))

		_, err := r.Resolve(ctx, "cached.local", 11000)
		require.NoError(t, err)
		assert.Equal(t, int32(2), lookups.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		fail := true
		r := NewDNSResolver(Config{
			Lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
				if fail {
					return nil, assert.AnError
				}
				return []net.IPAddr{{IP: net.ParseIP("10.2.2.2")}}, nil
			},
			Cache:    cacher.NewMemoryCacher[string](cache.NoExpiration, time.Minute),
			CacheTTL: time.Minute,
		})

		_, err := r.Resolve(ctx, "flaky.local", 11000)
		require.Error(t, err)

		fail = false
		addr, err := r.Resolve(ctx, "flaky.local", 11000)
		require.NoError(t, err)
		assert.Equal(t, "10.2.2.2:11000", addr.String())
	})
}

func TestDNSResolver_ForgetWithoutCache(t *testing.T) {
	r := NewDNSResolver(Config{Lookup: staticLookup("10.0.0.1")})
	assert.NoError(t, r.Forget(context.Background(), "anything"))
}
