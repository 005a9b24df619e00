package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Harry-kp/vortix/internal/engine"
)

// Recorder turns engine state transitions into history rows: it opens a
// pending entry when a session is confirmed and writes the row with the
// final counters when the session ends.
type Recorder struct {
	store *Store
	log   *slog.Logger

	mu      sync.Mutex
	pending *Entry
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store *Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, log: log}
}

// OnTransition is wired as the engine transition hook. A pending entry
// opens when a session is confirmed; the final counters are captured on
// the transition out of Connected because the engine resets its
// telemetry at that point; the row is written once Disconnected is
// reached. Write failures are logged, never propagated; history must
// not disturb monitoring.
func (r *Recorder) OnTransition(tr engine.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tr.To == engine.StateConnected {
		// A failed disconnect lands back in Connected; the session
		// never ended, so the pending entry stays open.
		if tr.From == engine.StateDisconnecting && r.pending != nil {
			return
		}
		if tr.Session == nil {
			return
		}
		startedAt := tr.Session.StartedAt
		if startedAt.IsZero() {
			startedAt = tr.At
		}
		r.pending = &Entry{
			Profile:   tr.Session.ProfileName,
			Protocol:  string(tr.Session.Protocol),
			StartedAt: startedAt,
		}
		return
	}

	if tr.From == engine.StateConnected && r.pending != nil {
		r.pending.RxBytes = tr.RxBytes
		r.pending.TxBytes = tr.TxBytes
		r.pending.EndedAt = tr.At
	}

	if tr.To == engine.StateDisconnected && r.pending != nil {
		entry := *r.pending
		r.pending = nil
		if entry.EndedAt.IsZero() {
			entry.EndedAt = time.Now()
		}
		if err := r.store.Record(entry); err != nil {
			r.log.Error("recording session history failed", "profile", entry.Profile, "error", err)
		}
	}
}
