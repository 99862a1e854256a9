package engine

import "sync"

// Payload is the loosely-typed payload carried by every bus event.
type Payload map[string]any

// String returns the string value at key, or "" when absent or not a
// string.
func (p Payload) String(key string) string {
	v, _ := p[key].(string)
	return v
}

// Bool returns the bool value at key, or false.
func (p Payload) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// Strings returns the string-slice value at key. Both []string and
// []any (the shape JSON decoding produces) are accepted.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Contains reports whether the string slice at key contains val.
func (p Payload) Contains(key, val string) bool {
	for _, s := range p.Strings(key) {
		if s == val {
			return true
		}
	}
	return false
}

// Handler receives an event payload.
type Handler func(Payload)

type subscription struct {
	id int64
	fn Handler
}

// Bus is the synchronous publish/subscribe dispatcher every component
// communicates through.
//
// Emit dispatches to all subscribers current at emit time, in
// subscription order, before returning. There is no queuing, no async
// dispatch, and no error isolation: a panicking handler propagates to
// the emitter. Callers that need isolation guard internally.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	subs   map[string][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// On subscribes fn to the named event and returns its unsubscribe
// function. Unsubscribing twice is a no-op.
func (b *Bus) On(event string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() { b.off(event, id) }
}

// Once subscribes fn for a single delivery. The subscription is removed
// before fn runs, so a handler that re-emits the same event cannot
// recurse into itself.
func (b *Bus) Once(event string, fn Handler) func() {
	var unsub func()
	unsub = b.On(event, func(p Payload) {
		unsub()
		fn(p)
	})
	return unsub
}

// Emit synchronously dispatches payload to all current subscribers of
// the named event, in subscription order.
func (b *Bus) Emit(event string, p Payload) {
	b.mu.Lock()
	current := make([]subscription, len(b.subs[event]))
	copy(current, b.subs[event])
	b.mu.Unlock()

	for _, s := range current {
		s.fn(p)
	}
}

// SubscriptionCounts returns the number of live subscriptions per event
// name. Introspection for tests and diagnostics.
func (b *Bus) SubscriptionCounts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[string]int, len(b.subs))
	for event, subs := range b.subs {
		if len(subs) > 0 {
			counts[event] = len(subs)
		}
	}
	return counts
}

// Clear removes every subscription. Used on full reset.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
}

func (b *Bus) off(event string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			b.subs[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
