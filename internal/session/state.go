package session

// Status is the coarse connection status of a session.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	// Failed is transient: it is reported in events, after which the session
	// settles back to Disconnected or stays where it was.
	Failed
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectionState is a status with the error that caused it, if any.
type ConnectionState struct {
	Status Status
	Err    error
}

func (s ConnectionState) String() string {
	if s.Err == nil {
		return s.Status.String()
	}
	return s.Status.String() + ": " + s.Err.Error()
}
