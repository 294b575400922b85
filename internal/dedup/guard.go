// Package dedup keeps a bounded record of processed event ids so a redelivered
// chat event is never handled twice.
package dedup

import "sync"

// DefaultCapacity is the number of ids remembered before the oldest is evicted.
const DefaultCapacity = 1000

// Guard is a fixed-capacity set with oldest-first (insertion order) eviction.
// Insert and evict are O(1). Safe for concurrent use.
type Guard struct {
	mu   sync.Mutex
	ring []string
	head int // index of the oldest id
	size int
	seen map[string]struct{}
}

// New creates a Guard. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Guard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Guard{
		ring: make([]string, capacity),
		seen: make(map[string]struct{}, capacity),
	}
}

// Admit records id and reports whether it was seen for the first time.
// Empty ids are always admitted and never recorded.
func (g *Guard) Admit(id string) bool {
	if id == "" {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[id]; ok {
		return false
	}
	g.seen[id] = struct{}{}

	if g.size == len(g.ring) {
		delete(g.seen, g.ring[g.head])
		g.ring[g.head] = id
		g.head = (g.head + 1) % len(g.ring)
		return true
	}

	g.ring[(g.head+g.size)%len(g.ring)] = id
	g.size++
	return true
}

// Contains reports whether id is currently remembered.
func (g *Guard) Contains(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[id]
	return ok
}

// Len returns the number of remembered ids.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.size
}
