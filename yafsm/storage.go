// Package yafsm holds per-conversation finite state machine storage.
//
// A conversation is addressed by a [StorageKey]. Every key owns an optional
// state name and a data map. Storages differ only in where the record lives:
//
//   - [MemoryStorage]: process memory, the default
//   - [RedisStorage]: redis, shared between processes
//   - [GormStorage]: any gorm dialect, sqlite in tests
//
// Each storage also exposes a per-key Lock, and [EventIsolation]
// implementations reuse the same primitives to serialise updates of one
// conversation.
//
// Example usage:
//
//	storage := yafsm.NewMemoryStorage()
//	fsm := yafsm.NewFSMContext(storage, yafsm.NewStorageKey(botID, chatID, userID))
//
//	_ = fsm.SetState(ctx, form.State("name"))
//	data, _ := fsm.UpdateData(ctx, map[string]any{"name": "Ya Code"})
package yafsm

import (
	"context"
	"maps"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
)

// StateStorage persists FSM records.
//
// GetState returns nil for an unknown key. GetData never returns a nil map.
// Lock blocks until the key is free or ctx is done, the returned func
// releases it and is safe to call more than once.
type StateStorage interface {
	SetState(ctx context.Context, key StorageKey, state *string) yaerrors.Error
	GetState(ctx context.Context, key StorageKey) (*string, yaerrors.Error)
	SetData(ctx context.Context, key StorageKey, data map[string]any) yaerrors.Error
	GetData(ctx context.Context, key StorageKey) (map[string]any, yaerrors.Error)
	UpdateData(ctx context.Context, key StorageKey, data map[string]any) (map[string]any, yaerrors.Error)
	Lock(ctx context.Context, key StorageKey) (func(), yaerrors.Error)
	Close() yaerrors.Error
}

func cloneState(state *string) *string {
	if state == nil {
		return nil
	}

	value := *state

	return &value
}

// cloneData deep copies nested maps and slices so stored records never alias caller values.
func cloneData(data map[string]any) map[string]any {
	result := make(map[string]any, len(data))

	for key, value := range data {
		result[key] = cloneValue(value)
	}

	return result
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneData(typed)
	case []any:
		result := make([]any, len(typed))

		for i, item := range typed {
			result[i] = cloneValue(item)
		}

		return result
	default:
		return value
	}
}

func mergeData(current map[string]any, patch map[string]any) map[string]any {
	merged := cloneData(current)

	maps.Copy(merged, cloneData(patch))

	return merged
}
