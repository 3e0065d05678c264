package timetable

// Memo keeps the last result of a pure computation keyed on the identity of
// its inputs. It is not safe for concurrent use; owners serialise access.
type Memo[K comparable, V any] struct {
	key   K
	value V
	ok    bool
}

// Get returns the cached value for key or computes and stores a new one.
func (m *Memo[K, V]) Get(key K, compute func() V) V {
	if m.ok && m.key == key {
		return m.value
	}
	m.value = compute()
	m.key = key
	m.ok = true
	return m.value
}

// Reset drops the cached value.
func (m *Memo[K, V]) Reset() {
	var zero V
	m.value = zero
	m.ok = false
}
