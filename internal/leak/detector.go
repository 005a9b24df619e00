// Package leak runs privacy checks against an active VPN session: an
// IPv6 connectivity probe that detects traffic escaping the tunnel, and
// a resolver check that compares the system DNS against the profile's
// expected server.
package leak

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Verdict is the outcome of a single leak check.
type Verdict string

const (
	// VerdictUnknown means the check has not run or could not decide.
	VerdictUnknown Verdict = "unknown"
	// VerdictClear means no leak was observed.
	VerdictClear Verdict = "clear"
	// VerdictLeaking means traffic or DNS queries bypass the tunnel.
	VerdictLeaking Verdict = "leaking"
)

// CheckType identifies which probe produced a verdict.
type CheckType string

const (
	CheckIPv6 CheckType = "ipv6"
	CheckDNS  CheckType = "dns"
)

// Report is the combined outcome of one detection pass.
type Report struct {
	IPv6      Verdict
	DNS       Verdict
	CheckedAt time.Time

	// ResolverAddr is the system resolver observed by the DNS check,
	// empty when it could not be read.
	ResolverAddr string
}

// Dialer abstracts the network dial used by the IPv6 probe so tests can
// script outcomes. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DefaultProbeAddress is a host expected to answer on IPv6 when the
// machine has a working IPv6 path outside the tunnel.
const DefaultProbeAddress = "ipv6.google.com:443"

// DefaultResolvConfPath is where glibc resolvers record nameservers.
const DefaultResolvConfPath = "/etc/resolv.conf"

// Detector runs leak checks. Zero value is not usable; use New.
type Detector struct {
	dialer         Dialer
	probeAddr      string
	resolvConfPath string

	readFile func(path string) ([]byte, error)
	now      func() time.Time
}

// New creates a detector probing probeAddr over IPv6 and reading system
// resolvers from resolvConfPath. Empty arguments select the defaults.
func New(dialer Dialer, probeAddr, resolvConfPath string) *Detector {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if probeAddr == "" {
		probeAddr = DefaultProbeAddress
	}
	if resolvConfPath == "" {
		resolvConfPath = DefaultResolvConfPath
	}
	return &Detector{
		dialer:         dialer,
		probeAddr:      probeAddr,
		resolvConfPath: resolvConfPath,
		readFile:       os.ReadFile,
		now:            time.Now,
	}
}

// Check runs both probes and returns a combined report. expectedDNS is
// the profile's expected resolver address; empty skips the comparison
// and a readable resolver config counts as clear.
func (d *Detector) Check(ctx context.Context, expectedDNS string) Report {
	report := Report{
		IPv6:      d.CheckIPv6(ctx),
		CheckedAt: d.now(),
	}
	report.DNS, report.ResolverAddr = d.CheckDNS(expectedDNS)
	return report
}

// CheckIPv6 attempts a TCP dial over IPv6 only. A completed connection
// means IPv6 traffic reaches the internet without passing through the
// tunnel. A timeout or refusal means the path is blocked, which is the
// desired state. Local errors (no IPv6 stack, no route) leave the
// verdict undecided.
func (d *Detector) CheckIPv6(ctx context.Context) Verdict {
	conn, err := d.dialer.DialContext(ctx, "tcp6", d.probeAddr)
	if err == nil {
		_ = conn.Close()
		return VerdictLeaking
	}

	switch {
	case isTimeout(err), errors.Is(err, syscall.ECONNREFUSED):
		return VerdictClear
	default:
		return VerdictUnknown
	}
}

// CheckDNS compares the first configured system nameserver against the
// expected one. It returns the verdict plus the observed resolver. A
// profile without a declared resolver has nothing to mismatch, so a
// readable config is clear; only an unreadable config is undecided.
func (d *Detector) CheckDNS(expectedDNS string) (Verdict, string) {
	resolver, ok := d.firstNameserver()
	if !ok {
		return VerdictUnknown, ""
	}
	if expectedDNS == "" {
		return VerdictClear, resolver
	}
	if resolver == expectedDNS {
		return VerdictClear, resolver
	}
	return VerdictLeaking, resolver
}

// firstNameserver returns the first nameserver directive in resolv.conf.
func (d *Detector) firstNameserver() (string, bool) {
	data, err := d.readFile(d.resolvConfPath)
	if err != nil {
		return "", false
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if addr, ok := strings.CutPrefix(line, "nameserver"); ok {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				return addr, true
			}
		}
	}
	return "", false
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT)
}
