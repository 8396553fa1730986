package health

import "time"

// State is the client's view of backend reachability.
type State uint8

const (
	// Checking means a probe is in flight. It is also the startup state.
	Checking State = iota
	// Online means the most recent probe succeeded.
	Online
	// Error means the last probe failed while the local network was up.
	Error
	// Offline means the host has no usable network link.
	Offline
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Online:
		return "online"
	case Error:
		return "error"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Event describes one state transition.
type Event struct {
	State    State
	Previous State
	// Recovered is set on the Online transition that ends a long outage.
	Recovered bool
	At        time.Time
}
