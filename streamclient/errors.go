package streamclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a session failure.
type ErrorKind int

const (
	KindResolution ErrorKind = iota + 1 // No usable address
	KindConnect                         // Endpoint refused or unreachable
	KindWrite                           // Transport rejected or failed the write
	KindRead                            // Transport failed mid-read or reset
)

// Sentinels matched by errors.Is against a *StageError of the same kind.
var (
	ErrResolution = errors.New("resolution error")
	ErrConnect    = errors.New("connect error")
	ErrWrite      = errors.New("write error")
	ErrRead       = errors.New("read error")
)

var (
	// ErrInvalidState is returned when a step is called out of order.
	ErrInvalidState = errors.New("invalid session state")
	// ErrSessionAborted is recorded when Close ends a session that has not
	// finished its exchange.
	ErrSessionAborted = errors.New("session aborted")
	// ErrNotConnected is delivered by Send or Receive without a connection.
	ErrNotConnected = errors.New("not connected")
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case KindResolution:
		return "ResolutionError"
	case KindConnect:
		return "ConnectError"
	case KindWrite:
		return "WriteError"
	case KindRead:
		return "ReadError"
	default:
		return "UnknownError"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindResolution:
		return ErrResolution
	case KindConnect:
		return ErrConnect
	case KindWrite:
		return ErrWrite
	case KindRead:
		return ErrRead
	default:
		return nil
	}
}

// StageError is the failure of one stage.
type StageError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's kind.
func (e *StageError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *StageError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}

	return 0, false
}

func stageError(kind ErrorKind, stage Stage, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}

	return &StageError{Kind: kind, Stage: stage, Err: err}
}
