package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Harry-kp/vortix/internal/fileutil"
)

// ErrUnknownFormat is returned when a file is neither a WireGuard nor an
// OpenVPN configuration.
var ErrUnknownFormat = errors.New("unrecognized VPN configuration format")

// Import reads a VPN configuration file, copies it into profilesDir, and
// returns the parsed profile. The profile name is the file's base name
// without extension.
func Import(path, profilesDir string) (*Profile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied import path
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	protocol, err := detectProtocol(path, string(data))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p := New(name, protocol)

	switch protocol {
	case ProtocolWireGuard:
		parseWireGuardConfig(p, string(data))
	case ProtocolOpenVPN:
		parseOpenVPNConfig(p, string(data))
	}

	// Keep a managed copy so the original file can move or disappear.
	// 0600: tunnel configs contain key material.
	dest := filepath.Join(profilesDir, filepath.Base(path))
	if err := fileutil.AtomicWrite(dest, data, 0600); err != nil {
		return nil, fmt.Errorf("copy config into profiles dir: %w", err)
	}
	p.ConfigPath = dest

	return p, nil
}

// detectProtocol decides the protocol from the file extension, falling
// back to content sniffing for ambiguous extensions like .conf.
func detectProtocol(path, content string) (Protocol, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ovpn":
		return ProtocolOpenVPN, nil
	case ".conf", ".config":
		if strings.Contains(content, "[Interface]") {
			return ProtocolWireGuard, nil
		}
		if looksLikeOpenVPN(content) {
			return ProtocolOpenVPN, nil
		}
		return "", ErrUnknownFormat
	default:
		return "", ErrUnknownFormat
	}
}

func looksLikeOpenVPN(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "client", "remote", "dev", "proto":
			return true
		}
	}
	return false
}

// parseWireGuardConfig extracts Endpoint and DNS from an INI-style
// WireGuard configuration.
func parseWireGuardConfig(p *Profile, content string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Endpoint":
			p.Endpoint = value
		case "DNS":
			// Multiple resolvers may be listed; the first one is what
			// resolv.conf should end up pointing at.
			if first, _, found := strings.Cut(value, ","); found {
				p.ExpectedDNS = strings.TrimSpace(first)
			} else {
				p.ExpectedDNS = value
			}
		}
	}
}

// parseOpenVPNConfig extracts the remote endpoint, pushed DNS, and
// auth-user-pass flag from an OpenVPN configuration.
func parseOpenVPNConfig(p *Profile, content string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "remote":
			if len(fields) >= 3 {
				p.Endpoint = fields[1] + ":" + fields[2]
			} else if len(fields) == 2 {
				p.Endpoint = fields[1]
			}
		case "dhcp-option":
			if len(fields) >= 3 && strings.EqualFold(fields[1], "DNS") && p.ExpectedDNS == "" {
				p.ExpectedDNS = fields[2]
			}
		case "auth-user-pass":
			p.RequiresAuth = true
		}
	}
}
