package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// MaxEvents bounds the retained activity log. Older events are evicted
// first once the cap is reached.
const MaxEvents = 200

// Publisher hands immutable snapshots and a bounded event log to any
// number of concurrent readers. Snapshot publication is a single atomic
// pointer swap so readers never observe a torn snapshot and never block
// the writer.
type Publisher struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	events  []Event
	nextSeq uint64
	subs    map[int]chan Event
	nextSub int
}

// NewPublisher returns a publisher primed with an initial disconnected
// snapshot so Latest never returns nil.
func NewPublisher() *Publisher {
	p := &Publisher{subs: make(map[int]chan Event)}
	p.current.Store(&Snapshot{State: StateDisconnected, Taken: time.Now()})
	return p
}

// Latest returns the most recently published snapshot. The returned
// value must be treated as read-only.
func (p *Publisher) Latest() *Snapshot {
	return p.current.Load()
}

// publish swaps in a new snapshot. The caller must not mutate s after
// the call.
func (p *Publisher) publish(s *Snapshot) {
	p.current.Store(s)
}

// Event appends an entry to the activity log, evicting the oldest entry
// when full, and fans it out to subscribers. Slow subscribers miss
// events rather than block the engine.
func (p *Publisher) Event(level EventLevel, msg string) {
	p.mu.Lock()
	p.nextSeq++
	ev := Event{Seq: p.nextSeq, At: time.Now(), Level: level, Msg: msg}
	if len(p.events) >= MaxEvents {
		p.events = p.events[1:]
	}
	p.events = append(p.events, ev)
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	p.mu.Unlock()
}

// Events returns a copy of the retained event log, oldest first.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// SubscribeEvents registers a forward-only event stream: the channel
// delivers events appended after the call, never historical ones. The
// returned cancel func releases the subscription and closes the channel.
func (p *Publisher) SubscribeEvents() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}
