package bootstrap

// SessionState is the state of the bootstrap session.
type SessionState uint8

const (
	// StateIdle means no session is open.
	StateIdle SessionState = iota

	// StateActive means a session is open and waiting for Bootstrap-Finish.
	StateActive

	// StateFinished means the authority sent Bootstrap-Finish. The session
	// stays open until Cancel.
	StateFinished
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}
