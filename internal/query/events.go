package query

import (
	"sync"
	"time"
)

// EventKind enumerates bus notifications.
type EventKind string

const (
	EventCommitted         EventKind = "committed"
	EventInvalidated       EventKind = "invalidated"
	EventMutationSucceeded EventKind = "mutation_succeeded"
)

// Mutation describes a write performed against the backend.
type Mutation struct {
	Resource string
	Action   string
	ID       string
	Actor    string
	Meta     map[string]any
}

// Event is delivered synchronously to every subscriber.
type Event struct {
	Kind     EventKind
	Resource string
	Key      Key
	Mutation *Mutation
	At       time.Time
}

// Bus fans events out to subscribers. Presentation code subscribes here
// instead of the cache owning navigation.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function removing it again.
func (b *Bus) Subscribe(fn func(Event)) func() {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
