package yacache

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
	"weak"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
)

// MemoryContainer is the raw storage of the in-memory cache.
type MemoryContainer map[string]*memoryCacheItem

// NewMemoryContainer returns an empty container.
func NewMemoryContainer() MemoryContainer {
	return make(MemoryContainer)
}

type memoryCacheItem struct {
	Value     string
	ExpiresAt time.Time
	Endless   bool
}

func newMemoryCacheItem(value string, ttl time.Duration) *memoryCacheItem {
	if ttl <= 0 {
		return &memoryCacheItem{Value: value, Endless: true}
	}

	return &memoryCacheItem{Value: value, ExpiresAt: time.Now().Add(ttl)}
}

func (m *memoryCacheItem) isExpired(now time.Time) bool {
	return !m.Endless && !now.Before(m.ExpiresAt)
}

// Memory is a threadsafe, TTL-aware map-backed cache suitable for a single
// process or unit tests. Expired keys are invisible to readers immediately and
// purged by a background sweeper.
type Memory struct {
	inner MemoryContainer
	mutex sync.RWMutex
	done  chan struct{}
	once  sync.Once
}

// NewMemory builds a [Memory] cache and starts the sweeper with tickToClean interval.
//
// Example:
//
//	memory := yacache.NewMemory(yacache.NewMemoryContainer(), 30*time.Second)
func NewMemory(data MemoryContainer, tickToClean time.Duration) *Memory {
	if data == nil {
		data = NewMemoryContainer()
	}

	cache := &Memory{
		inner: data,
		done:  make(chan struct{}),
	}

	go cleanup(weak.Make(cache), tickToClean, cache.done)

	return cache
}

// cleanup holds only a weak pointer so an abandoned cache can still be collected.
func cleanup(pointer weak.Pointer[Memory], tickToClean time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(tickToClean)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			memory := pointer.Value()
			if memory == nil {
				return
			}

			now := time.Now()

			memory.mutex.Lock()

			for key, item := range memory.inner {
				if item.isExpired(now) {
					delete(memory.inner, key)
				}
			}

			memory.mutex.Unlock()
		case <-done:
			return
		}
	}
}

func (m *Memory) Raw() MemoryContainer {
	return m.inner
}

func (m *Memory) Set(_ context.Context, key string, value string, ttl time.Duration) yaerrors.Error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.inner[key] = newMemoryCacheItem(value, ttl)

	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, yaerrors.Error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if item, ok := m.inner[key]; ok && !item.isExpired(time.Now()) {
		return false, nil
	}

	m.inner[key] = newMemoryCacheItem(value, ttl)

	return true, nil
}

func (m *Memory) Get(_ context.Context, key string) (string, yaerrors.Error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	item, ok := m.inner[key]
	if !ok || item.isExpired(time.Now()) {
		return "", yaerrors.FromError(
			http.StatusNotFound,
			ErrKeyNotFound,
			fmt.Sprintf("[MEMORY] failed `GET` by `%s`", key),
		)
	}

	return item.Value, nil
}

func (m *Memory) GetDel(_ context.Context, key string) (string, yaerrors.Error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	item, ok := m.inner[key]
	if !ok || item.isExpired(time.Now()) {
		return "", yaerrors.FromError(
			http.StatusNotFound,
			ErrKeyNotFound,
			fmt.Sprintf("[MEMORY] failed `GETDEL` by `%s`", key),
		)
	}

	delete(m.inner, key)

	return item.Value, nil
}

func (m *Memory) Exists(_ context.Context, keys ...string) (int64, yaerrors.Error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	now := time.Now()

	var count int64

	for _, key := range keys {
		if item, ok := m.inner[key]; ok && !item.isExpired(now) {
			count++
		}
	}

	return count, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) yaerrors.Error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, key := range keys {
		delete(m.inner, key)
	}

	return nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, yaerrors.Error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	item, ok := m.inner[key]
	if !ok || item.isExpired(time.Now()) {
		return false, nil
	}

	m.inner[key] = newMemoryCacheItem(item.Value, ttl)

	return true, nil
}

// Ping always succeeds for the in-memory backend.
func (m *Memory) Ping(_ context.Context) yaerrors.Error {
	return nil
}

// Close stops the sweeper and drops all keys. Calling it twice is safe.
func (m *Memory) Close() yaerrors.Error {
	m.once.Do(func() {
		close(m.done)

		m.mutex.Lock()
		clear(m.inner)
		m.mutex.Unlock()
	})

	return nil
}
