// Package threadsafemap provides a generic map guarded by a RWMutex.
// The zero value is ready to use.
package threadsafemap

import (
	"maps"
	"slices"
	"sync"
)

// ThreadSafeMap is a generic map implementation that supports concurrent read and write operations safely.
type ThreadSafeMap[K comparable, V any] struct {
	data map[K]V
	mu   sync.RWMutex
}

// NewThreadSafeMap returns a new instance of a thread-safe map with initialized internal storage.
func NewThreadSafeMap[K comparable, V any]() *ThreadSafeMap[K, V] {
	return &ThreadSafeMap[K, V]{
		data: make(map[K]V),
	}
}

// Get retrieves the value for a key and a boolean indicating whether it was found.
func (m *ThreadSafeMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	val, exists := m.data[key]
	m.mu.RUnlock()

	return val, exists
}

// Set stores value under key.
func (m *ThreadSafeMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	m.init()
	m.data[key] = value
	m.mu.Unlock()
}

// Delete removes the specified key from the map if it exists.
func (m *ThreadSafeMap[K, V]) Delete(key K) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// Has checks whether a given key exists in the map.
func (m *ThreadSafeMap[K, V]) Has(key K) bool {
	m.mu.RLock()
	_, exists := m.data[key]
	m.mu.RUnlock()

	return exists
}

// SetIfAbsent stores value only when key is missing and reports whether it did.
//
// Example usage:
//
//	if !scenes.SetIfAbsent("form", scene) {
//	    // already registered
//	}
func (m *ThreadSafeMap[K, V]) SetIfAbsent(key K, value V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.init()

	if _, exists := m.data[key]; exists {
		return false
	}

	m.data[key] = value

	return true
}

// GetOrCreate returns the value for key, building and storing it with create when missing.
// create runs under the write lock and must not call back into the map.
func (m *ThreadSafeMap[K, V]) GetOrCreate(key K, create func() V) V {
	m.mu.RLock()
	val, exists := m.data[key]
	m.mu.RUnlock()

	if exists {
		return val
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.init()

	if val, exists = m.data[key]; exists {
		return val
	}

	val = create()
	m.data[key] = val

	return val
}

// Update atomically replaces the value under key with the result of fn.
// When fn returns keep == false the key is removed instead.
//
// Example usage:
//
//	counters.Update("hits", func(old int, _ bool) (int, bool) {
//	    return old + 1, true
//	})
func (m *ThreadSafeMap[K, V]) Update(key K, fn func(old V, exists bool) (value V, keep bool)) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.init()

	old, exists := m.data[key]

	value, keep := fn(old, exists)
	if !keep {
		delete(m.data, key)

		return value
	}

	m.data[key] = value

	return value
}

// Copy returns a shallow copy of the current content.
func (m *ThreadSafeMap[K, V]) Copy() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.data)
}

// Keys returns the keys in unspecified order.
func (m *ThreadSafeMap[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Collect(maps.Keys(m.data))
}

// Values returns the values in unspecified order.
func (m *ThreadSafeMap[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Collect(maps.Values(m.data))
}

// Length returns the number of stored keys.
func (m *ThreadSafeMap[K, V]) Length() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// init must be called with the write lock held.
func (m *ThreadSafeMap[K, V]) init() {
	if m.data == nil {
		m.data = make(map[K]V)
	}
}
