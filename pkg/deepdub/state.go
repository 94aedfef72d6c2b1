package deepdub

// SessionState is a streaming session's lifecycle state.
type SessionState int

const (
	// StateIdle: session created, not yet connected.
	StateIdle SessionState = iota

	// StateConnecting: dialing, or reconnecting after a transport fault.
	StateConnecting

	// StateStreaming: connected and exchanging frames.
	StateStreaming

	// StateDraining: server signalled completion; buffered chunks are
	// still being delivered to the caller.
	StateDraining

	// StateClosed: terminal; reached on completion or explicit Close.
	StateClosed

	// StateErrored: terminal; reached on a fatal error, which is
	// retained on the session.
	StateErrored
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// terminal reports whether the state absorbs all further transitions.
func (s SessionState) terminal() bool {
	return s == StateClosed || s == StateErrored
}

// validTransitions is the session lifecycle graph. Closed is reachable
// from anywhere via explicit Close; Errored from any non-terminal state.
var validTransitions = map[SessionState][]SessionState{
	StateIdle:       {StateConnecting, StateClosed, StateErrored},
	StateConnecting: {StateStreaming, StateClosed, StateErrored},
	StateStreaming:  {StateDraining, StateConnecting, StateClosed, StateErrored},
	StateDraining:   {StateClosed, StateErrored},
	StateClosed:     nil,
	StateErrored:    nil,
}

func transitionValid(from, to SessionState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
