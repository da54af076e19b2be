package yafsm

import (
	"context"

	"github.com/YaCodeDev/GoYaBotKit/threadsafemap"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
)

type memoryRecord struct {
	state *string
	data  map[string]any
}

// MemoryStorage keeps records in process memory, grouped by destiny.
// Records live until Close; it is not suitable for multi-process deployments.
type MemoryStorage struct {
	destinies *threadsafemap.ThreadSafeMap[string, *threadsafemap.ThreadSafeMap[StorageKey, memoryRecord]]
	locks     keyedLock[StorageKey]
}

var _ StateStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		destinies: threadsafemap.NewThreadSafeMap[string, *threadsafemap.ThreadSafeMap[StorageKey, memoryRecord]](),
	}
}

func (m *MemoryStorage) records(key StorageKey) *threadsafemap.ThreadSafeMap[StorageKey, memoryRecord] {
	return m.destinies.GetOrCreate(key.Destiny, threadsafemap.NewThreadSafeMap[StorageKey, memoryRecord])
}

func (m *MemoryStorage) SetState(_ context.Context, key StorageKey, state *string) yaerrors.Error {
	key = key.normalized()

	m.records(key).Update(key, func(record memoryRecord, _ bool) (memoryRecord, bool) {
		record.state = cloneState(state)

		return record, true
	})

	return nil
}

func (m *MemoryStorage) GetState(_ context.Context, key StorageKey) (*string, yaerrors.Error) {
	key = key.normalized()

	record, _ := m.records(key).Get(key)

	return cloneState(record.state), nil
}

func (m *MemoryStorage) SetData(_ context.Context, key StorageKey, data map[string]any) yaerrors.Error {
	key = key.normalized()

	m.records(key).Update(key, func(record memoryRecord, _ bool) (memoryRecord, bool) {
		record.data = cloneData(data)

		return record, true
	})

	return nil
}

func (m *MemoryStorage) GetData(_ context.Context, key StorageKey) (map[string]any, yaerrors.Error) {
	key = key.normalized()

	record, _ := m.records(key).Get(key)

	return cloneData(record.data), nil
}

func (m *MemoryStorage) UpdateData(
	_ context.Context,
	key StorageKey,
	data map[string]any,
) (map[string]any, yaerrors.Error) {
	key = key.normalized()

	record := m.records(key).Update(key, func(record memoryRecord, _ bool) (memoryRecord, bool) {
		record.data = mergeData(record.data, data)

		return record, true
	})

	return cloneData(record.data), nil
}

// Lock takes the in-process FIFO lock of key.
func (m *MemoryStorage) Lock(ctx context.Context, key StorageKey) (func(), yaerrors.Error) {
	unlock, err := m.locks.Lock(ctx, key.normalized())
	if err != nil {
		return nil, err.Wrap("[MEMORY] failed to lock fsm record")
	}

	return unlock, nil
}

// Close drops every record.
func (m *MemoryStorage) Close() yaerrors.Error {
	for _, destiny := range m.destinies.Keys() {
		m.destinies.Delete(destiny)
	}

	return nil
}
