package yafsm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
)

// keyedLock is a set of FIFO mutexes created on demand per key. Release hands
// the lock directly to the oldest waiter, so arrival order is kept.
type keyedLock[K comparable] struct {
	mutex   sync.Mutex
	entries map[K]*lockEntry
}

type lockEntry struct {
	waiters []chan struct{}
}

func (l *keyedLock[K]) Lock(ctx context.Context, key K) (func(), yaerrors.Error) {
	l.mutex.Lock()

	if l.entries == nil {
		l.entries = make(map[K]*lockEntry)
	}

	entry, held := l.entries[key]
	if !held {
		l.entries[key] = &lockEntry{}
		l.mutex.Unlock()

		return l.releaser(key), nil
	}

	ready := make(chan struct{})
	entry.waiters = append(entry.waiters, ready)

	l.mutex.Unlock()

	select {
	case <-ready:
		return l.releaser(key), nil
	case <-ctx.Done():
	}

	l.mutex.Lock()

	select {
	case <-ready:
		// Ownership arrived together with the cancellation.
		l.mutex.Unlock()
		l.unlock(key)
	default:
		entry.waiters = slices.DeleteFunc(entry.waiters, func(waiter chan struct{}) bool {
			return waiter == ready
		})

		l.mutex.Unlock()
	}

	return nil, yaerrors.FromError(
		http.StatusRequestTimeout,
		errors.Join(ctx.Err(), ErrLockNotAcquired),
		fmt.Sprintf("[LOCK] failed to acquire `%v`", key),
	)
}

func (l *keyedLock[K]) releaser(key K) func() {
	var once sync.Once

	return func() {
		once.Do(func() { l.unlock(key) })
	}
}

func (l *keyedLock[K]) unlock(key K) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return
	}

	if len(entry.waiters) == 0 {
		delete(l.entries, key)

		return
	}

	next := entry.waiters[0]
	entry.waiters = entry.waiters[1:]

	close(next)
}

// held reports how many keys are currently locked.
func (l *keyedLock[K]) held() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return len(l.entries)
}
