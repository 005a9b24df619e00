package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wireGuardConfig = `[Interface]
PrivateKey = aGlkZGVuaGlkZGVuaGlkZGVuaGlkZGVuaGlkZGVuaGk=
Address = 10.8.0.2/24
DNS = 10.8.0.1, 10.8.0.2

[Peer]
PublicKey = xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg=
Endpoint = 163.172.161.0:51820
AllowedIPs = 0.0.0.0/0
`

const openVPNConfig = `client
dev tun
proto udp
remote vpn.example.com 1194
auth-user-pass
; pushed options
dhcp-option DNS 10.9.0.1
dhcp-option DNS 10.9.0.2
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImport_WireGuard(t *testing.T) {
	profilesDir := t.TempDir()
	src := writeConfig(t, "nl-amsterdam.conf", wireGuardConfig)

	p, err := Import(src, profilesDir)
	require.NoError(t, err)

	assert.Equal(t, "nl-amsterdam", p.Name)
	assert.Equal(t, ProtocolWireGuard, p.Protocol)
	assert.Equal(t, "163.172.161.0:51820", p.Endpoint)
	assert.Equal(t, "10.8.0.1", p.ExpectedDNS, "first DNS entry wins")
	assert.False(t, p.RequiresAuth)

	// The managed copy lives in the profiles dir with tight permissions.
	assert.Equal(t, filepath.Join(profilesDir, "nl-amsterdam.conf"), p.ConfigPath)
	info, err := os.Stat(p.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestImport_OpenVPN(t *testing.T) {
	profilesDir := t.TempDir()
	src := writeConfig(t, "office.ovpn", openVPNConfig)

	p, err := Import(src, profilesDir)
	require.NoError(t, err)

	assert.Equal(t, "office", p.Name)
	assert.Equal(t, ProtocolOpenVPN, p.Protocol)
	assert.Equal(t, "vpn.example.com:1194", p.Endpoint)
	assert.Equal(t, "10.9.0.1", p.ExpectedDNS)
	assert.True(t, p.RequiresAuth)
}

func TestImport_OpenVPNWithConfExtension(t *testing.T) {
	src := writeConfig(t, "office.conf", openVPNConfig)

	p, err := Import(src, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ProtocolOpenVPN, p.Protocol)
}

func TestImport_UnknownFormat(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unrelated extension", "notes.txt", "hello"},
		{"conf with unknown content", "mystery.conf", "key=value\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeConfig(t, tt.file, tt.content)
			_, err := Import(src, t.TempDir())
			assert.ErrorIs(t, err, ErrUnknownFormat)
		})
	}
}

func TestImport_MissingFile(t *testing.T) {
	_, err := Import(filepath.Join(t.TempDir(), "nope.conf"), t.TempDir())
	assert.Error(t, err)
}
