// Package stats samples network interface byte counters and derives
// throughput rates for the active VPN tunnel.
package stats

import "time"

// DefaultStaleAfter is the maximum gap between two samples for a rate to
// be considered valid. A larger gap usually means the host slept or a
// tick was missed, so the interval cannot be trusted.
const DefaultStaleAfter = 5 * time.Second

// InterfaceSample is an immutable point-in-time reading of an interface's
// cumulative byte counters.
type InterfaceSample struct {
	// Interface is the network interface name (e.g., "wg0", "tun0").
	Interface string

	// RxBytes is the total bytes received on the interface.
	RxBytes uint64
	// TxBytes is the total bytes transmitted on the interface.
	TxBytes uint64

	// Taken is when the counters were read.
	Taken time.Time
}

// Rate is a derived throughput value. Valid is false until two usable
// samples exist for the same interface; consumers must render an invalid
// rate as "warming up", never as zero.
type Rate struct {
	// DownBytesPerSec is the receive rate in bytes per second.
	DownBytesPerSec float64
	// UpBytesPerSec is the transmit rate in bytes per second.
	UpBytesPerSec float64
	// Valid reports whether the rate was derived from a usable interval.
	Valid bool
}

// DeriveRate computes the throughput between two consecutive samples of
// the same interface.
//
// The result is invalid when:
//   - the samples are for different interfaces
//   - elapsed time is non-positive or exceeds staleAfter
//   - either counter decreased (reset or wraparound; no counter width is
//     assumed, the interval is simply discarded)
func DeriveRate(prev, cur InterfaceSample, staleAfter time.Duration) Rate {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	if prev.Interface != cur.Interface {
		return Rate{}
	}

	elapsed := cur.Taken.Sub(prev.Taken)
	if elapsed <= 0 || elapsed > staleAfter {
		return Rate{}
	}

	if cur.RxBytes < prev.RxBytes || cur.TxBytes < prev.TxBytes {
		return Rate{}
	}

	secs := elapsed.Seconds()
	return Rate{
		DownBytesPerSec: float64(cur.RxBytes-prev.RxBytes) / secs,
		UpBytesPerSec:   float64(cur.TxBytes-prev.TxBytes) / secs,
		Valid:           true,
	}
}
