// Package events provides the internal pub/sub bus components use to
// broadcast state diffs and audit events, with a bounded replay ring so a
// late-joining observer (such as the dashboard) can catch up without having
// followed every tick.
//
// Publish delivers directly to a mutex-guarded map of subscriber channels,
// with drop-slow-subscriber eviction like pkg/hub's websocket fan-out, but
// carries typed, replayable Events instead of raw byte messages.
package events

import (
	"sync"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
)

const replayCapacity = 500

// Event is a single point on the bus: a type tag, a timestamp, and an
// arbitrary JSON-able payload.
type Event struct {
	ID        string
	Type      string
	Timestamp time.Time
	Payload   any
	Metadata  map[string]string
}

type subscriber struct {
	ch     chan Event
	filter func(Event) bool
}

// Bus fans out Events to subscribers and retains the last 500 for replay.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscriber]bool
	ring []Event
	next int
	full bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[*subscriber]bool),
		ring: make([]Event, replayCapacity),
	}
}

// Publish appends the event to the replay ring and fans it out. Slow
// subscribers are dropped rather than allowed to block the publisher.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	b.ring[b.next] = e
	b.next = (b.next + 1) % replayCapacity
	if b.next == 0 {
		b.full = true
	}
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.drop(s)
			log.Warn("events: dropped slow subscriber", "type", e.Type)
		}
	}
}

func (b *Bus) drop(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Subscribe returns a channel of future events; filter may be nil to
// receive everything.
func (b *Bus) Subscribe(filter func(Event) bool) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, 64), filter: filter}
	b.mu.Lock()
	b.subs[s] = true
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.ch)
		}
	}
	return s.ch, unsubscribe
}

// Replay returns up to n of the most recently published events, oldest
// first.
func (b *Bus) Replay(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ordered []Event
	if b.full {
		ordered = append(ordered, b.ring[b.next:]...)
		ordered = append(ordered, b.ring[:b.next]...)
	} else {
		ordered = append(ordered, b.ring[:b.next]...)
	}

	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}
