package scan

import (
	"strconv"
	"strings"
	"time"

	"github.com/Harry-kp/vortix/internal/profile"
)

// Session describes one active VPN session detected on the system.
// Fields beyond Interface and Protocol are best-effort; WireGuard
// exposes far more detail than OpenVPN.
type Session struct {
	// ProfileName is the owning profile, or empty when the session could
	// not be attributed to any known profile.
	ProfileName string
	// Interface is the OS-level tunnel interface name.
	Interface string
	// Protocol of the detected tunnel.
	Protocol profile.Protocol

	// StartedAt is when the session was established (zero if unknown).
	StartedAt time.Time

	// Peer details from `wg show` (WireGuard only).
	Endpoint     string
	PublicKey    string
	ListenPort   string
	HandshakeAge time.Duration
	HasHandshake bool
	TransferRx   uint64
	TransferTx   uint64

	// Interface details.
	InternalIP string
	MTU        int
}

// Result is the outcome of one scan pass.
type Result struct {
	// Session is the single active session after tie-breaking, or nil
	// when no tunnel is up.
	Session *Session
	// Warnings carries scan anomalies (ambiguous scans, unattributed
	// interfaces) for the event log.
	Warnings []string
}

// parseWgShow fills session fields from `wg show <iface>` output.
func parseWgShow(s *Session, out string) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)

		if v, ok := strings.CutPrefix(line, "public key: "); ok {
			s.PublicKey = v
		}
		if v, ok := strings.CutPrefix(line, "listening port: "); ok {
			s.ListenPort = v
		}
		if v, ok := strings.CutPrefix(line, "endpoint: "); ok {
			s.Endpoint = v
		}
		if v, ok := strings.CutPrefix(line, "latest handshake: "); ok {
			if age, ok := parseHandshakeAge(v); ok {
				s.HandshakeAge = age
				s.HasHandshake = true
			}
		}
		if v, ok := strings.CutPrefix(line, "transfer: "); ok {
			rx, tx := parseTransfer(v)
			s.TransferRx = rx
			s.TransferTx = tx
		}
	}
}

// parseHandshakeAge converts wg's human form ("1 minute, 32 seconds ago")
// into a duration.
func parseHandshakeAge(v string) (time.Duration, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), " ago")
	if v == "" || v == "0" {
		return 0, false
	}

	var total time.Duration
	found := false
	for _, part := range strings.Split(v, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		unit := strings.TrimSuffix(fields[1], "s")
		switch unit {
		case "second":
			total += time.Duration(n) * time.Second
		case "minute":
			total += time.Duration(n) * time.Minute
		case "hour":
			total += time.Duration(n) * time.Hour
		case "day":
			total += time.Duration(n) * 24 * time.Hour
		default:
			continue
		}
		found = true
	}
	return total, found
}

// parseTransfer converts "1.21 MiB received, 4.74 MiB sent" into byte counts.
func parseTransfer(v string) (rx, tx uint64) {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasSuffix(part, " received"):
			rx = parseSize(strings.TrimSuffix(part, " received"))
		case strings.HasSuffix(part, " sent"):
			tx = parseSize(strings.TrimSuffix(part, " sent"))
		}
	}
	return rx, tx
}

// parseSize converts wg's "4.74 MiB" style sizes into bytes.
func parseSize(v string) uint64 {
	fields := strings.Fields(strings.TrimSpace(v))
	if len(fields) == 0 {
		return 0
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}

	multiplier := 1.0
	if len(fields) > 1 {
		switch fields[1] {
		case "B":
			multiplier = 1
		case "KiB":
			multiplier = 1024
		case "MiB":
			multiplier = 1024 * 1024
		case "GiB":
			multiplier = 1024 * 1024 * 1024
		case "TiB":
			multiplier = 1024 * 1024 * 1024 * 1024
		}
	}
	return uint64(value * multiplier)
}
