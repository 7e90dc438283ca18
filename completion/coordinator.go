package completion

// Signal names used by the Coordinator.
const (
	ConnectDone = "connect-done"
	SendDone    = "send-done"
	ReceiveDone = "receive-done"
)

// Coordinator groups the three per-session signals. Each is completed by its
// stage's callback and waited on by the controlling goroutine, which keeps the
// stages in strict connect, send, receive order.
type Coordinator struct {
	ConnectDone *Signal
	SendDone    *Signal
	ReceiveDone *Signal
}

// NewCoordinator returns a Coordinator with three fresh, unset signals.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		ConnectDone: NewSignal(ConnectDone),
		SendDone:    NewSignal(SendDone),
		ReceiveDone: NewSignal(ReceiveDone),
	}
}

// Signals returns the signals in stage order.
func (c *Coordinator) Signals() []*Signal {
	return []*Signal{c.ConnectDone, c.SendDone, c.ReceiveDone}
}

// AnySet reports whether any signal completed successfully.
func (c *Coordinator) AnySet() bool {
	for _, s := range c.Signals() {
		if s.IsSet() {
			return true
		}
	}

	return false
}
