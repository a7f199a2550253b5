package client

// State is the lifecycle state of the connection.
type State int

const (
	// StateIdle means Connect has not been called yet.
	StateIdle State = iota

	// StateConnecting means the handshake is in progress.
	StateConnecting

	// StateOpen means frames are being exchanged.
	StateOpen

	// StateClosed means Close was called. It is final.
	StateClosed

	// StateErrored means the dial or the live connection failed. A new
	// Connect call leaves it.
	StateErrored
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StateEvent describes a state transition.
type StateEvent struct {
	Old State
	New State
	// Err is the cause of a transition to StateErrored.
	Err error
}
