package insights

// OrderedMap is a map that remembers the order in which keys were first set.
// The zero value is not usable; call NewOrderedMap.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{values: make(map[K]V)}
}

// Set stores v under k. A new key is appended to the key order;
// overwriting an existing key keeps its original position.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Get returns the value stored under k.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

// Keys returns the keys in first-insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// GroupBy buckets items by key. Buckets appear in the order their key was
// first seen, and items keep their input order inside a bucket.
func GroupBy[T any, K comparable](items []T, key func(T) K) *OrderedMap[K, []T] {
	groups := NewOrderedMap[K, []T]()
	for _, item := range items {
		k := key(item)
		bucket, _ := groups.Get(k)
		groups.Set(k, append(bucket, item))
	}
	return groups
}
