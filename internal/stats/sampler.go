package stats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// sysfsNetPath is the base path for network interface statistics.
const sysfsNetPath = "/sys/class/net"

// ErrInterfaceGone is returned when an interface's counters disappeared
// between samples, typically because the tunnel was torn down mid-tick.
var ErrInterfaceGone = errors.New("interface statistics not found")

// CounterReader reads the raw cumulative byte counters for an interface.
type CounterReader interface {
	Read(iface string) (rx, tx uint64, err error)
}

// SysfsReader reads counters from /sys/class/net/<iface>/statistics.
type SysfsReader struct{}

// Read returns the rx_bytes and tx_bytes counters for the interface.
// Returns ErrInterfaceGone if the statistics directory does not exist.
func (SysfsReader) Read(iface string) (rx, tx uint64, err error) {
	statsDir := filepath.Join(sysfsNetPath, iface, "statistics")

	rx, err = readCounterFile(filepath.Join(statsDir, "rx_bytes"))
	if err != nil {
		return 0, 0, err
	}
	tx, err = readCounterFile(filepath.Join(statsDir, "tx_bytes"))
	if err != nil {
		return 0, 0, err
	}
	return rx, tx, nil
}

// readCounterFile reads a single counter file and parses it as uint64.
// The path is validated to stay within the sysfs network directory.
func readCounterFile(path string) (uint64, error) {
	cleanPath := filepath.Clean(path)
	if !strings.HasPrefix(cleanPath, sysfsNetPath+string(filepath.Separator)) {
		return 0, errors.New("invalid stats path: outside sysfs network directory")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path validated above
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s: %w", cleanPath, ErrInterfaceGone)
		}
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// Sampler reads interface counters once per tick and derives throughput
// from consecutive samples. The previous-sample cache is the only
// cross-tick state and is private to the sampler; the engine calls
// Sample from a single goroutine, so no locking is needed here.
type Sampler struct {
	reader     CounterReader
	staleAfter time.Duration
	now        func() time.Time

	prev *InterfaceSample
}

// NewSampler creates a sampler using the given counter reader.
// If staleAfter is 0, DefaultStaleAfter is used.
func NewSampler(reader CounterReader, staleAfter time.Duration) *Sampler {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Sampler{
		reader:     reader,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Sample reads the counters for iface and returns the new sample together
// with the rate derived against the previous sample. The first sample for
// an interface, and any sample after an invalidated interval, yields
// Rate{Valid: false}.
//
// On read failure the previous-sample cache is cleared so that telemetry
// restarts cleanly once the interface is readable again.
func (s *Sampler) Sample(iface string) (InterfaceSample, Rate, error) {
	rx, tx, err := s.reader.Read(iface)
	if err != nil {
		s.prev = nil
		return InterfaceSample{}, Rate{}, fmt.Errorf("sample %s: %w", iface, err)
	}

	cur := InterfaceSample{
		Interface: iface,
		RxBytes:   rx,
		TxBytes:   tx,
		Taken:     s.now(),
	}

	var rate Rate
	if s.prev != nil {
		rate = DeriveRate(*s.prev, cur, s.staleAfter)
	}
	s.prev = &cur

	return cur, rate, nil
}

// Reset clears the previous-sample cache. The engine calls this when the
// active interface changes or the connection drops, so a stale baseline
// is never paired with a fresh tunnel.
func (s *Sampler) Reset() {
	s.prev = nil
}
