package yafsm

import (
	"context"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
)

// FSMContext binds a storage to one key.
type FSMContext struct {
	storage StateStorage
	key     StorageKey
}

// NewFSMContext returns an accessor for key. An empty destiny becomes DefaultDestiny.
func NewFSMContext(storage StateStorage, key StorageKey) *FSMContext {
	return &FSMContext{
		storage: storage,
		key:     key.normalized(),
	}
}

func (f *FSMContext) Key() StorageKey {
	return f.key
}

func (f *FSMContext) Storage() StateStorage {
	return f.storage
}

// WithDestiny returns an accessor for the same conversation in another destiny.
func (f *FSMContext) WithDestiny(destiny string) *FSMContext {
	return NewFSMContext(f.storage, f.key.WithDestiny(destiny))
}

// SetState stores state. A nil State clears it.
func (f *FSMContext) SetState(ctx context.Context, state State) yaerrors.Error {
	return f.SetRawState(ctx, StateOf(state))
}

// SetRawState stores the state name as is.
func (f *FSMContext) SetRawState(ctx context.Context, state *string) yaerrors.Error {
	if err := f.storage.SetState(ctx, f.key, state); err != nil {
		return err.Wrap("failed to set fsm state")
	}

	return nil
}

func (f *FSMContext) GetState(ctx context.Context) (*string, yaerrors.Error) {
	state, err := f.storage.GetState(ctx, f.key)
	if err != nil {
		return nil, err.Wrap("failed to get fsm state")
	}

	return state, nil
}

func (f *FSMContext) SetData(ctx context.Context, data map[string]any) yaerrors.Error {
	if data == nil {
		data = map[string]any{}
	}

	if err := f.storage.SetData(ctx, f.key, data); err != nil {
		return err.Wrap("failed to set fsm data")
	}

	return nil
}

func (f *FSMContext) GetData(ctx context.Context) (map[string]any, yaerrors.Error) {
	data, err := f.storage.GetData(ctx, f.key)
	if err != nil {
		return nil, err.Wrap("failed to get fsm data")
	}

	if data == nil {
		data = map[string]any{}
	}

	return data, nil
}

// UpdateData merges data into the stored map and returns the result.
func (f *FSMContext) UpdateData(ctx context.Context, data map[string]any) (map[string]any, yaerrors.Error) {
	merged, err := f.storage.UpdateData(ctx, f.key, data)
	if err != nil {
		return nil, err.Wrap("failed to update fsm data")
	}

	return merged, nil
}

// GetValue returns one data entry.
func (f *FSMContext) GetValue(ctx context.Context, name string) (any, bool, yaerrors.Error) {
	data, err := f.GetData(ctx)
	if err != nil {
		return nil, false, err
	}

	value, ok := data[name]

	return value, ok, nil
}

// Clear drops the state and the data. It is not atomic unless the caller
// holds the storage lock.
func (f *FSMContext) Clear(ctx context.Context) yaerrors.Error {
	if err := f.SetRawState(ctx, nil); err != nil {
		return err.Wrap("failed to clear fsm context")
	}

	if err := f.SetData(ctx, map[string]any{}); err != nil {
		return err.Wrap("failed to clear fsm context")
	}

	return nil
}

// Lock takes the storage lock of the bound key.
func (f *FSMContext) Lock(ctx context.Context) (func(), yaerrors.Error) {
	return f.storage.Lock(ctx, f.key)
}
