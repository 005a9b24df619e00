package engine

import (
	"time"

	"github.com/Harry-kp/vortix/internal/leak"
	"github.com/Harry-kp/vortix/internal/scan"
	"github.com/Harry-kp/vortix/internal/stats"
	"github.com/Harry-kp/vortix/internal/telemetry"
)

// Snapshot is one immutable view of the monitored connection. Readers
// receive a pointer to a snapshot that is never mutated after publish;
// consecutive snapshots are totally ordered by Tick.
type Snapshot struct {
	// Tick increases by one for every published snapshot.
	Tick uint64
	// Taken is when the snapshot was assembled.
	Taken time.Time

	// State of the connection as decided by the state machine.
	State ConnectionState
	// Session is the active session detail, nil unless the scanner has
	// confirmed one.
	Session *scan.Session

	// Rate is the most recent throughput derivation. Rate.Valid is false
	// whenever a trustworthy rate could not be computed.
	Rate stats.Rate
	// RxBytes and TxBytes are the interface counter totals from the most
	// recent sample, zero when not connected.
	RxBytes uint64
	TxBytes uint64

	// Leak holds the latest leak check verdicts. Both verdicts are
	// Unknown unless the connection is established.
	Leak leak.Report

	// Network holds the latest public IP, ISP, and latency readings.
	// These describe the host, not the session, and survive disconnects.
	Network telemetry.Info

	// ScannerDegraded is set while consecutive scan failures are below
	// the forced-disconnect threshold but above zero.
	ScannerDegraded bool
}

// EventLevel classifies event log entries.
type EventLevel string

const (
	EventInfo  EventLevel = "info"
	EventWarn  EventLevel = "warn"
	EventError EventLevel = "error"
)

// Event is one entry in the bounded activity log.
type Event struct {
	// Seq increases by one per event and never repeats, even after
	// older events are evicted.
	Seq   uint64
	At    time.Time
	Level EventLevel
	Msg   string
}

// Transition describes one state machine transition, delivered to the
// OnTransition hook.
type Transition struct {
	From ConnectionState
	To   ConnectionState
	At   time.Time
	// Session is the session active at transition time. For a
	// disconnect it carries the final counters of the ended session.
	Session *scan.Session
	// RxBytes and TxBytes are the last sampled counter totals.
	RxBytes uint64
	TxBytes uint64
}
