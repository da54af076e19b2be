package yafsm

import (
	"context"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/redis/go-redis/v9"
)

// EventIsolation serialises processing of updates that resolve to the same key.
type EventIsolation interface {
	Lock(ctx context.Context, key StorageKey) (func(), yaerrors.Error)
	Close() yaerrors.Error
}

// DisabledEventIsolation never blocks.
type DisabledEventIsolation struct{}

var (
	_ EventIsolation = DisabledEventIsolation{}
	_ EventIsolation = (*MemoryEventIsolation)(nil)
	_ EventIsolation = (*RedisEventIsolation)(nil)
)

func (DisabledEventIsolation) Lock(context.Context, StorageKey) (func(), yaerrors.Error) {
	return func() {}, nil
}

func (DisabledEventIsolation) Close() yaerrors.Error {
	return nil
}

// MemoryEventIsolation is a FIFO lock per key inside one process.
type MemoryEventIsolation struct {
	locks keyedLock[StorageKey]
}

func NewMemoryEventIsolation() *MemoryEventIsolation {
	return &MemoryEventIsolation{}
}

func (m *MemoryEventIsolation) Lock(ctx context.Context, key StorageKey) (func(), yaerrors.Error) {
	unlock, err := m.locks.Lock(ctx, key.normalized())
	if err != nil {
		return nil, err.Wrap("[MEMORY] failed to isolate event")
	}

	return unlock, nil
}

func (m *MemoryEventIsolation) Close() yaerrors.Error {
	return nil
}

// RedisEventIsolation locks keys across processes with the redis token lock.
type RedisEventIsolation struct {
	keyBuilder KeyBuilder
	locker     *redisLocker
}

// NewRedisEventIsolation shares the client with a RedisStorage without owning it.
//
// Example:
//
//	isolation := yafsm.NewRedisEventIsolation(storage.Client())
func NewRedisEventIsolation(client *redis.Client, opts ...RedisOption) *RedisEventIsolation {
	storage := &RedisStorage{
		keyBuilder: DefaultKeyBuilder{WithBotID: true, WithDestiny: true},
		locker:     newRedisLocker(client, defaultLockTTL),
	}

	for _, opt := range opts {
		opt(storage)
	}

	return &RedisEventIsolation{
		keyBuilder: storage.keyBuilder,
		locker:     storage.locker,
	}
}

func (r *RedisEventIsolation) Lock(ctx context.Context, key StorageKey) (func(), yaerrors.Error) {
	unlock, err := r.locker.Lock(ctx, r.keyBuilder.Build(key, PartLock))
	if err != nil {
		return nil, err.Wrap("failed to isolate event")
	}

	return unlock, nil
}

func (r *RedisEventIsolation) Close() yaerrors.Error {
	return nil
}
