package leak

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	err error
}

func (f *fakeDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	if f.err != nil {
		return nil, f.err
	}
	client, server := net.Pipe()
	go func() { _ = server.Close() }()
	return client, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestCheckIPv6(t *testing.T) {
	tests := []struct {
		name    string
		dialErr error
		want    Verdict
	}{
		{"dial succeeds means leak", nil, VerdictLeaking},
		{"timeout means blocked", &net.OpError{Op: "dial", Err: timeoutError{}}, VerdictClear},
		{"connection refused means blocked", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, VerdictClear},
		{"network unreachable is undecided", &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}, VerdictUnknown},
		{"no ipv6 stack is undecided", errors.New("dial tcp6: address family not supported"), VerdictUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeDialer{err: tt.dialErr}, "", "")
			assert.Equal(t, tt.want, d.CheckIPv6(context.Background()))
		})
	}
}

func writeResolvConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckDNS(t *testing.T) {
	tests := []struct {
		name         string
		resolvConf   string
		expectedDNS  string
		wantVerdict  Verdict
		wantResolver string
	}{
		{
			name:         "matching resolver",
			resolvConf:   "nameserver 10.8.0.1\n",
			expectedDNS:  "10.8.0.1",
			wantVerdict:  VerdictClear,
			wantResolver: "10.8.0.1",
		},
		{
			name:         "mismatched resolver leaks",
			resolvConf:   "nameserver 192.168.1.1\n",
			expectedDNS:  "10.8.0.1",
			wantVerdict:  VerdictLeaking,
			wantResolver: "192.168.1.1",
		},
		{
			name:         "first nameserver wins",
			resolvConf:   "# generated\nsearch lan\nnameserver 10.8.0.1\nnameserver 192.168.1.1\n",
			expectedDNS:  "10.8.0.1",
			wantVerdict:  VerdictClear,
			wantResolver: "10.8.0.1",
		},
		{
			name:         "no expectation with readable config is clear",
			resolvConf:   "nameserver 10.8.0.1\n",
			expectedDNS:  "",
			wantVerdict:  VerdictClear,
			wantResolver: "10.8.0.1",
		},
		{
			name:        "no expectation with unreadable config stays unknown",
			resolvConf:  "search lan\n",
			expectedDNS: "",
			wantVerdict: VerdictUnknown,
		},
		{
			name:        "no nameserver directive",
			resolvConf:  "search lan\n",
			expectedDNS: "10.8.0.1",
			wantVerdict: VerdictUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeDialer{}, "", writeResolvConf(t, tt.resolvConf))
			verdict, resolver := d.CheckDNS(tt.expectedDNS)
			assert.Equal(t, tt.wantVerdict, verdict)
			assert.Equal(t, tt.wantResolver, resolver)
		})
	}
}

func TestCheckDNS_MissingResolvConf(t *testing.T) {
	d := New(&fakeDialer{}, "", filepath.Join(t.TempDir(), "missing"))
	verdict, resolver := d.CheckDNS("10.8.0.1")
	assert.Equal(t, VerdictUnknown, verdict)
	assert.Empty(t, resolver)
}

func TestCheck_CombinedReport(t *testing.T) {
	d := New(&fakeDialer{err: &net.OpError{Op: "dial", Err: timeoutError{}}}, "", writeResolvConf(t, "nameserver 10.8.0.1\n"))
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	report := d.Check(context.Background(), "10.8.0.1")
	assert.Equal(t, VerdictClear, report.IPv6)
	assert.Equal(t, VerdictClear, report.DNS)
	assert.Equal(t, "10.8.0.1", report.ResolverAddr)
	assert.Equal(t, fixed, report.CheckedAt)
}
