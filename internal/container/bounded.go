// Package container holds the small generic collections shared by the
// verification pipeline: a capacity-bounded insertion-ordered set with FIFO
// eviction, an unbounded insertion-ordered map with swap removal, and a plain
// fixed-capacity ring buffer. All operations are O(1).
package container

// BoundedSet is a fixed-capacity set that remembers insertion order and
// evicts its oldest member once full. Membership is answered through a
// position index; the backing slots form a circular list.
type BoundedSet[K comparable] struct {
	slots []K
	index map[K]int
	head  int
	size  int
}

// NewBoundedSet builds a set holding at most capacity keys.
func NewBoundedSet[K comparable](capacity int) *BoundedSet[K] {
	if capacity <= 0 {
		panic("container: bounded set capacity must be positive")
	}
	return &BoundedSet[K]{
		slots: make([]K, capacity),
		index: make(map[K]int, capacity),
	}
}

// Contains reports membership.
func (s *BoundedSet[K]) Contains(key K) bool {
	_, ok := s.index[key]
	return ok
}

// Insert adds key, evicting the oldest member when the set is full. It
// returns the evicted key, whether an eviction happened, and whether the
// insert took place (false when key was already present).
func (s *BoundedSet[K]) Insert(key K) (evicted K, didEvict bool, inserted bool) {
	if s.Contains(key) {
		return evicted, false, false
	}

	pos := (s.head + s.size) % len(s.slots)
	if s.size == len(s.slots) {
		// Full: the new key reuses the oldest slot.
		pos = s.head
		evicted = s.slots[pos]
		delete(s.index, evicted)
		s.head = (s.head + 1) % len(s.slots)
		s.size--
		didEvict = true
	}

	s.slots[pos] = key
	s.index[key] = pos
	s.size++
	return evicted, didEvict, true
}

// Len returns the current number of members.
func (s *BoundedSet[K]) Len() int {
	return s.size
}

// Cap returns the configured capacity.
func (s *BoundedSet[K]) Cap() int {
	return len(s.slots)
}

// Oldest returns the member next in line for eviction.
func (s *BoundedSet[K]) Oldest() (K, bool) {
	var zero K
	if s.size == 0 {
		return zero, false
	}
	return s.slots[s.head], true
}
