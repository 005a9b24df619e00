// Package profile provides VPN profile management: import, validation,
// and on-disk storage of WireGuard and OpenVPN configurations.
package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Protocol identifies the VPN protocol of a profile.
type Protocol string

const (
	// ProtocolWireGuard is a WireGuard tunnel managed via wg-quick.
	ProtocolWireGuard Protocol = "wireguard"
	// ProtocolOpenVPN is an OpenVPN tunnel managed via the openvpn daemon.
	ProtocolOpenVPN Protocol = "openvpn"

	// maxNameLength bounds profile names to keep the dashboard layout sane.
	maxNameLength = 64
)

// String returns the display name of the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolWireGuard:
		return "WireGuard"
	case ProtocolOpenVPN:
		return "OpenVPN"
	default:
		return string(p)
	}
}

// Valid reports whether the protocol is a known value.
func (p Protocol) Valid() bool {
	return p == ProtocolWireGuard || p == ProtocolOpenVPN
}

// Profile represents an imported VPN configuration. The monitoring core
// treats profiles as read-only; it only ever references them by name.
type Profile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	// Endpoint is the remote server address parsed from the config.
	Endpoint string `json:"endpoint,omitempty"`
	// ExpectedDNS is the resolver the tunnel is supposed to install.
	// Used by the DNS leak check; empty means no expectation declared.
	ExpectedDNS string `json:"expected_dns,omitempty"`
	// Location is a free-form server location label.
	Location string `json:"location,omitempty"`
	// ConfigPath is the managed copy of the configuration file.
	ConfigPath string `json:"config_path"`
	// RequiresAuth marks OpenVPN profiles that declare auth-user-pass;
	// credentials for these are kept in the system keyring.
	RequiresAuth bool `json:"requires_auth,omitempty"`
}

// New creates a profile with a generated ID.
func New(name string, protocol Protocol) *Profile {
	return &Profile{
		ID:       uuid.New().String(),
		Name:     name,
		Protocol: protocol,
	}
}

// Validate checks that the profile is usable for connecting and scanning.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return errors.New("profile ID is required")
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return fmt.Errorf("invalid profile ID format: %w", err)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return errors.New("profile name is required")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("profile name too long (max %d characters)", maxNameLength)
	}
	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("profile name contains control character at position %d", i)
		}
	}

	if !p.Protocol.Valid() {
		return fmt.Errorf("invalid protocol: %q", p.Protocol)
	}
	if strings.TrimSpace(p.ConfigPath) == "" {
		return errors.New("config path is required")
	}

	return nil
}
