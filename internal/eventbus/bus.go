// Package eventbus implements the in-process topic multiplexer from
// spec.md §4.2: PushHub and any other internal listener subscribe to a
// topic pattern and receive events in publish order, with bounded
// per-subscriber buffering and drop-oldest backpressure.
package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the minimum per-subscriber buffer spec.md §4.2
// requires (">= 64").
const DefaultBufferSize = 64

// Bus is a single in-process pub/sub multiplexer. The zero value is not
// usable; construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	bufferSize  int
}

// New constructs a Bus whose subscriber channels are sized bufferSize; a
// value below DefaultBufferSize is raised to it.
func New(bufferSize int) *Bus {
	if bufferSize < DefaultBufferSize {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subscribers: make(map[uint64]*subscriber),
		bufferSize:  bufferSize,
	}
}

type subscriber struct {
	id      uint64
	pattern string
	ch      chan Event
	mu      sync.Mutex
	closed  atomic.Bool
}

// send delivers ev non-blocking; on a full buffer it evicts the oldest
// queued event and enqueues an EventLossMarker in its place, per spec.md
// §4.2. The per-subscriber mutex keeps delivery single-threaded so publish
// order is preserved for this subscriber even under concurrent publishers.
func (s *subscriber) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- EventLossMarker():
	default:
	}
}

// Subscription is a live subscription returned by Bus.Subscribe.
type Subscription struct {
	bus *Bus
	sub *subscriber
}

// Recv returns the channel of delivered events. It is closed by Close.
func (s *Subscription) Recv() <-chan Event {
	return s.sub.ch
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subscribers, s.sub.id)
	s.bus.mu.Unlock()

	if s.sub.closed.CompareAndSwap(false, true) {
		s.sub.mu.Lock()
		close(s.sub.ch)
		s.sub.mu.Unlock()
	}
}

// Subscribe registers a new subscription matching topicPattern (e.g.
// "job.*", "queue.*", "performance.*", or an exact topic).
func (b *Bus) Subscribe(topicPattern string) *Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{
		id:      id,
		pattern: topicPattern,
		ch:      make(chan Event, b.bufferSize),
	}
	b.subscribers[id] = sub
	b.mu.Unlock()

	return &Subscription{bus: b, sub: sub}
}

// Publish delivers event to every subscriber whose pattern matches topic.
// It never blocks the caller: full subscriber buffers shed load per the
// policy in subscriber.send.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	ev := Event{Topic: topic, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if matchesPattern(sub.pattern, string(topic)) {
			sub.send(ev)
		}
	}
}

// matchesPattern reports whether topic matches pattern. A pattern ending
// in ".*" matches any topic sharing its prefix segment; otherwise the
// match is exact.
func matchesPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, "*")
	if !ok {
		return false
	}
	return strings.HasPrefix(topic, prefix)
}
