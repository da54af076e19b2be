// Package yathreadsafeset provides a generic set guarded by a RWMutex.
package yathreadsafeset

import (
	"cmp"
	"maps"
	"slices"
	"sync"
)

// ThreadSafeSet is a generic set implementation that supports concurrent read and write operations safely.
type ThreadSafeSet[K comparable] struct {
	data map[K]struct{}
	mu   sync.RWMutex
}

// NewThreadSafeSet returns a set holding values.
//
// Example usage:
//
//	kinds := yathreadsafeset.NewThreadSafeSet("message", "callback_query")
func NewThreadSafeSet[K comparable](values ...K) *ThreadSafeSet[K] {
	set := &ThreadSafeSet[K]{
		data: make(map[K]struct{}, len(values)),
	}

	for _, value := range values {
		set.data[value] = struct{}{}
	}

	return set
}

// Set adds value to the set.
func (m *ThreadSafeSet[K]) Set(value K) {
	m.mu.Lock()

	if m.data == nil {
		m.data = make(map[K]struct{})
	}

	m.data[value] = struct{}{}
	m.mu.Unlock()
}

// Has checks whether the set contains value.
func (m *ThreadSafeSet[K]) Has(value K) bool {
	m.mu.RLock()
	_, ok := m.data[value]
	m.mu.RUnlock()

	return ok
}

// Delete removes value from the set.
func (m *ThreadSafeSet[K]) Delete(value K) {
	m.mu.Lock()
	delete(m.data, value)
	m.mu.Unlock()
}

// Length returns the number of values.
func (m *ThreadSafeSet[K]) Length() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// Values returns the values in unspecified order.
func (m *ThreadSafeSet[K]) Values() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Collect(maps.Keys(m.data))
}

// Union returns a new set with the values of both sets.
func (m *ThreadSafeSet[K]) Union(other *ThreadSafeSet[K]) *ThreadSafeSet[K] {
	result := NewThreadSafeSet(m.Values()...)

	for _, value := range other.Values() {
		result.Set(value)
	}

	return result
}

// Sorted returns the values of an ordered set in ascending order.
func Sorted[K cmp.Ordered](set *ThreadSafeSet[K]) []K {
	values := set.Values()
	slices.Sort(values)

	return values
}
