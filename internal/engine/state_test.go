package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStatePredicates(t *testing.T) {
	tests := []struct {
		state         ConnectionState
		isConnected   bool
		transitioning bool
		canConnect    bool
		canDisconnect bool
	}{
		{StateDisconnected, false, false, true, false},
		{StateConnecting, false, true, false, true},
		{StateConnected, true, false, false, true},
		{StateDisconnecting, false, true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.isConnected, tt.state.IsConnected())
			assert.Equal(t, tt.transitioning, tt.state.IsTransitioning())
			assert.Equal(t, tt.canConnect, tt.state.CanConnect())
			assert.Equal(t, tt.canDisconnect, tt.state.CanDisconnect())
		})
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  ConnectionState
		to    ConnectionState
		valid bool
	}{
		{"disconnected to connecting", StateDisconnected, StateConnecting, true},
		{"disconnected to connected via external tunnel", StateDisconnected, StateConnected, true},
		{"connecting to connected", StateConnecting, StateConnected, true},
		{"connecting aborted", StateConnecting, StateDisconnected, true},
		{"connected to disconnecting", StateConnected, StateDisconnecting, true},
		{"connected dropped", StateConnected, StateDisconnected, true},
		{"disconnecting to disconnected", StateDisconnecting, StateDisconnected, true},
		{"disconnecting reverts when session persists", StateDisconnecting, StateConnected, true},
		{"disconnected to disconnecting", StateDisconnected, StateDisconnecting, false},
		{"connected to connecting", StateConnected, StateConnecting, false},
		{"disconnecting to connecting", StateDisconnecting, StateConnecting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestIsValidTransition_SelfLoopsRejected(t *testing.T) {
	for _, s := range AllStates() {
		assert.False(t, IsValidTransition(s, s), "self transition from %s", s)
	}
}
