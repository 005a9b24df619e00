// Package engine runs the connection monitoring loop: it schedules the
// session scanner, metric sampler, and leak detector on their own
// cadences, folds their results through a single-writer state machine,
// and publishes immutable snapshots for the UI and CLI to read.
package engine

// ConnectionState represents the observed state of the VPN connection.
type ConnectionState string

const (
	// StateDisconnected indicates no active VPN session.
	StateDisconnected ConnectionState = "disconnected"
	// StateConnecting indicates a connect command was issued and the
	// scanner has not yet confirmed a session.
	StateConnecting ConnectionState = "connecting"
	// StateConnected indicates the scanner confirmed an active session.
	StateConnected ConnectionState = "connected"
	// StateDisconnecting indicates a disconnect command was issued and
	// the scanner still sees the session.
	StateDisconnecting ConnectionState = "disconnecting"
)

// IsConnected returns true if the state represents an active session.
func (s ConnectionState) IsConnected() bool {
	return s == StateConnected
}

// IsTransitioning returns true while a connect or disconnect command is
// waiting for scanner confirmation.
func (s ConnectionState) IsTransitioning() bool {
	return s == StateConnecting || s == StateDisconnecting
}

// CanConnect returns true if a connect command may be issued.
func (s ConnectionState) CanConnect() bool {
	return s == StateDisconnected
}

// CanDisconnect returns true if a disconnect command may be issued.
func (s ConnectionState) CanDisconnect() bool {
	return s == StateConnecting || s == StateConnected
}

// validTransitions defines the allowed state transitions. The scanner is
// the sole authority for entering and leaving Connected; the two
// transitioning states exist only to reflect in-flight user commands.
var validTransitions = map[ConnectionState][]ConnectionState{
	StateDisconnected: {
		StateConnecting,
		StateConnected, // externally established tunnel discovered by a scan
	},
	StateConnecting: {
		StateConnected,
		StateDisconnecting,
		StateDisconnected, // connect command failed or was abandoned
	},
	StateConnected: {
		StateDisconnecting,
		StateDisconnected, // tunnel dropped without a user command
	},
	StateDisconnecting: {
		StateDisconnected,
		StateConnected, // disconnect command failed, session persists
	},
}

// IsValidTransition checks if transitioning from one state to another is allowed.
func IsValidTransition(from, to ConnectionState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllStates returns all possible connection states.
func AllStates() []ConnectionState {
	return []ConnectionState{
		StateDisconnected,
		StateConnecting,
		StateConnected,
		StateDisconnecting,
	}
}
