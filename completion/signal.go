// Package completion provides one-shot completion signals that let a single
// controlling goroutine block until an asynchronous stage has finished. A
// signal completes exactly once, either successfully (Set) or with an error
// (Fail), and every waiter observes the same outcome.
package completion

import (
	"context"
	"sync"
	"time"
)

// Signal is a one-shot, error-carrying completion signal. The zero value is
// not usable; create signals with NewSignal.
//
// Completing a signal closes an internal channel, so everything the completing
// goroutine wrote before calling Set or Fail is visible to a goroutine that
// returns from Wait.
type Signal struct {
	name string
	once sync.Once
	done chan struct{}

	mu        sync.RWMutex
	err       error
	completed time.Time
}

// NewSignal creates an unset signal identified by name.
//
// Parameters:
//   - name: Human-readable name used in logs (e.g. "connect-done")
//
// Returns:
//   - A new *Signal in the unset state
func NewSignal(name string) *Signal {
	return &Signal{
		name: name,
		done: make(chan struct{}),
	}
}

// Name returns the signal's name.
func (s *Signal) Name() string {
	return s.name
}

// Set completes the signal successfully. Only the first completion counts.
//
// Returns:
//   - true if this call completed the signal, false if it was already complete
func (s *Signal) Set() bool {
	return s.complete(nil)
}

// Fail completes the signal with err so that waiters are released with that
// error instead of blocking forever. A nil err is treated as Set.
//
// Parameters:
//   - err: The failure to deliver to waiters
//
// Returns:
//   - true if this call completed the signal, false if it was already complete
func (s *Signal) Fail(err error) bool {
	return s.complete(err)
}

func (s *Signal) complete(err error) bool {
	fired := false
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.completed = time.Now()
		s.mu.Unlock()

		close(s.done)
		fired = true
	})

	return fired
}

// Wait blocks until the signal completes or ctx is done.
//
// Parameters:
//   - ctx: Bounds the wait; use context.Background() to wait indefinitely
//
// Returns:
//   - nil if the signal was Set, the error passed to Fail, or ctx.Err()
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		// A completion racing with cancellation wins.
		select {
		case <-s.done:
			return s.Err()
		default:
		}

		return ctx.Err()
	}
}

// Done returns a channel that is closed when the signal completes.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// IsSet reports whether the signal completed successfully.
func (s *Signal) IsSet() bool {
	select {
	case <-s.done:
		return s.Err() == nil
	default:
		return false
	}
}

// IsComplete reports whether the signal completed, successfully or not.
func (s *Signal) IsComplete() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Err returns the failure the signal completed with, or nil.
func (s *Signal) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// CompletedAt returns when the signal completed, or the zero time.
func (s *Signal) CompletedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed
}
