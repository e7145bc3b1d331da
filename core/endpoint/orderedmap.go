package endpoint

import "slices"

// orderedMap is a map that iterates in insertion order.
type orderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

func newOrderedMap[K comparable, V any]() *orderedMap[K, V] {
	return &orderedMap[K, V]{keys: make([]K, 0), values: make(map[K]V)}
}

func (m *orderedMap[K, V]) Len() int { return len(m.keys) }

func (m *orderedMap[K, V]) Has(k K) bool {
	_, ok := m.values[k]
	return ok
}

func (m *orderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

// Set stores v under k. A new key is appended, an existing one keeps its position.
func (m *orderedMap[K, V]) Set(k K, v V) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Delete removes k and reports whether it was present.
func (m *orderedMap[K, V]) Delete(k K) bool {
	if _, ok := m.values[k]; !ok {
		return false
	}
	delete(m.values, k)
	if i := slices.Index(m.keys, k); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	return true
}

func (m *orderedMap[K, V]) Keys() []K {
	return slices.Clone(m.keys)
}

func (m *orderedMap[K, V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

func (m *orderedMap[K, V]) Clone() *orderedMap[K, V] {
	c := newOrderedMap[K, V]()
	for _, k := range m.keys {
		c.Set(k, m.values[k])
	}
	return c
}

func (m *orderedMap[K, V]) Clear() {
	m.keys = make([]K, 0)
	m.values = make(map[K]V)
}

// SameKeys reports whether both maps hold the same keys in the same order.
func (m *orderedMap[K, V]) SameKeys(other *orderedMap[K, V]) bool {
	return slices.Equal(m.keys, other.keys)
}
