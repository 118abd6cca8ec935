package container

// Ring is a plain fixed-capacity FIFO ring buffer.
type Ring[T any] struct {
	buf  []T
	head int
	size int
}

// NewRing builds a ring holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("container: ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v. When full, the oldest element is evicted and returned.
func (r *Ring[T]) Push(v T) (evicted T, didEvict bool) {
	if r.size == len(r.buf) {
		evicted = r.buf[r.head]
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return evicted, true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = v
	r.size++
	return evicted, false
}

// PeekOldest returns the element next in line for eviction.
func (r *Ring[T]) PeekOldest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[r.head], true
}

// PeekNewest returns the most recently pushed element.
func (r *Ring[T]) PeekNewest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the configured capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Clone returns an independent copy of the ring.
func (r *Ring[T]) Clone() *Ring[T] {
	dup := &Ring[T]{buf: make([]T, len(r.buf)), head: r.head, size: r.size}
	copy(dup.buf, r.buf)
	return dup
}
