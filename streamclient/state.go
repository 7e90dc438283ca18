package streamclient

import "time"

// SessionState is a position in the session's linear lifecycle.
type SessionState int

const (
	Init       SessionState = iota // Created, nothing started
	Resolving                      // Resolving the endpoint
	Connecting                     // Connect issued, waiting for connect-done
	Connected                      // Connection handle installed
	Sending                        // Write issued, waiting for send-done
	Sent                           // Payload fully written
	Receiving                      // Read chain running, waiting for receive-done
	Received                       // Response extracted
	Closed                         // Connection released after a successful exchange
	Failed                         // Unrecoverable error; connection released
)

// String returns the state's name.
func (s SessionState) String() string {
	switch s {
	case Init:
		return "Init"
	case Resolving:
		return "Resolving"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Sending:
		return "Sending"
	case Sent:
		return "Sent"
	case Receiving:
		return "Receiving"
	case Received:
		return "Received"
	case Closed:
		return "Closed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no transition leaves s.
func (s SessionState) IsTerminal() bool {
	return s == Closed || s == Failed
}

// canTransition allows the next state in line, or Failed from any
// non-terminal state.
func (s SessionState) canTransition(next SessionState) bool {
	if s.IsTerminal() {
		return false
	}

	if next == Failed {
		return true
	}

	return next == s+1
}

// Stage is one of the session's steps.
type Stage int

const (
	StageResolve Stage = iota
	StageConnect
	StageSend
	StageReceive
)

// String returns the stage's name.
func (s Stage) String() string {
	switch s {
	case StageResolve:
		return "resolve"
	case StageConnect:
		return "connect"
	case StageSend:
		return "send"
	case StageReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// StateChangeEvent is emitted on every state transition.
type StateChangeEvent struct {
	SessionID uint32       // Session that changed
	Previous  SessionState // State before the transition
	State     SessionState // State after the transition
	Address   string       // Configured "host:port"
	Timestamp time.Time    // When the transition happened
	Error     error        // Non-nil when State is Failed
}

// StateChangeHandler receives state changes. It is invoked on its own
// goroutine, so events may be observed out of order; use Session.States for
// the authoritative history.
type StateChangeHandler func(event StateChangeEvent)
