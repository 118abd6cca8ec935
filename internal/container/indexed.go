package container

// IndexedMap is an unbounded insertion-ordered map with O(1) get, put and
// swap-remove, enumerable without allocation. Used for admin-style tables
// (committee keys, caller allowlists) and the per-pair slot table.
type IndexedMap[K comparable, V any] struct {
	keys   []K
	values []V
	index  map[K]int
}

// NewIndexedMap builds an empty map.
func NewIndexedMap[K comparable, V any]() *IndexedMap[K, V] {
	return &IndexedMap[K, V]{index: make(map[K]int)}
}

// Get returns the value stored under key.
func (m *IndexedMap[K, V]) Get(key K) (V, bool) {
	var zero V
	pos, ok := m.index[key]
	if !ok {
		return zero, false
	}
	return m.values[pos], true
}

// Put inserts or replaces the value under key and reports whether the key
// already existed.
func (m *IndexedMap[K, V]) Put(key K, value V) bool {
	if pos, ok := m.index[key]; ok {
		m.values[pos] = value
		return true
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
	return false
}

// Remove deletes key via swap-remove and reports whether it was present.
func (m *IndexedMap[K, V]) Remove(key K) bool {
	pos, ok := m.index[key]
	if !ok {
		return false
	}
	last := len(m.keys) - 1
	if pos != last {
		m.keys[pos] = m.keys[last]
		m.values[pos] = m.values[last]
		m.index[m.keys[pos]] = pos
	}
	var zeroK K
	var zeroV V
	m.keys[last] = zeroK
	m.values[last] = zeroV
	m.keys = m.keys[:last]
	m.values = m.values[:last]
	delete(m.index, key)
	return true
}

// Len returns the number of entries.
func (m *IndexedMap[K, V]) Len() int {
	return len(m.keys)
}

// Range calls fn for every entry until fn returns false. Enumeration order is
// insertion order disturbed only by swap removals.
func (m *IndexedMap[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.keys {
		if !fn(m.keys[i], m.values[i]) {
			return
		}
	}
}
