package yascene

import (
	"context"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
)

// HistoryDestiny is the destiny holding the scene history of a conversation.
const HistoryDestiny = "scenes_history"

const (
	historyKey      = "history"
	historyStateKey = "state"
	historyDataKey  = "data"
)

// Snapshot is one history entry.
type Snapshot struct {
	State *string
	Data  map[string]any
}

// History is the bounded stack of snapshots of one conversation. It is
// persisted in the HistoryDestiny of the conversation key as
// {"history": [{"state": ..., "data": {...}}, ...]}, oldest first.
type History struct {
	fsm     *yafsm.FSMContext
	history *yafsm.FSMContext
	size    int
}

// NewHistory binds a history of size entries to fsm.
func NewHistory(fsm *yafsm.FSMContext, size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}

	return &History{
		fsm:     fsm,
		history: fsm.WithDestiny(HistoryDestiny),
		size:    size,
	}
}

func (h *History) Size() int {
	return h.size
}

// Push appends a snapshot, dropping the oldest entries above the size.
func (h *History) Push(ctx context.Context, state *string, data map[string]any) yaerrors.Error {
	entries, err := h.All(ctx)
	if err != nil {
		return err
	}

	entries = append(entries, Snapshot{State: state, Data: data})
	if len(entries) > h.size {
		entries = entries[len(entries)-h.size:]
	}

	return h.write(ctx, entries)
}

// Pop removes and returns the newest snapshot, nil when empty.
func (h *History) Pop(ctx context.Context) (*Snapshot, yaerrors.Error) {
	entries, err := h.All(ctx)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, nil
	}

	last := entries[len(entries)-1]

	if err := h.write(ctx, entries[:len(entries)-1]); err != nil {
		return nil, err
	}

	return &last, nil
}

// Get returns the newest snapshot without removing it, nil when empty.
func (h *History) Get(ctx context.Context) (*Snapshot, yaerrors.Error) {
	entries, err := h.All(ctx)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, nil
	}

	return &entries[len(entries)-1], nil
}

// All returns the snapshots, oldest first.
func (h *History) All(ctx context.Context) ([]Snapshot, yaerrors.Error) {
	raw, _, err := h.history.GetValue(ctx, historyKey)
	if err != nil {
		return nil, err.Wrap("[HISTORY] failed to read history")
	}

	items, _ := raw.([]any)
	entries := make([]Snapshot, 0, len(items))

	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		var snapshot Snapshot

		if state, ok := fields[historyStateKey].(string); ok {
			snapshot.State = &state
		}

		snapshot.Data, _ = fields[historyDataKey].(map[string]any)
		if snapshot.Data == nil {
			snapshot.Data = map[string]any{}
		}

		entries = append(entries, snapshot)
	}

	return entries, nil
}

// Clear drops every snapshot.
func (h *History) Clear(ctx context.Context) yaerrors.Error {
	if err := h.history.SetData(ctx, map[string]any{}); err != nil {
		return err.Wrap("[HISTORY] failed to clear history")
	}

	return nil
}

// Snapshot pushes the current state and data of the conversation.
func (h *History) Snapshot(ctx context.Context) yaerrors.Error {
	state, err := h.fsm.GetState(ctx)
	if err != nil {
		return err.Wrap("[HISTORY] failed to snapshot state")
	}

	data, err := h.fsm.GetData(ctx)
	if err != nil {
		return err.Wrap("[HISTORY] failed to snapshot data")
	}

	return h.Push(ctx, state, data)
}

// Rollback pops the newest snapshot and restores it into the conversation.
// An empty history clears the state and the data. It returns the restored
// state.
func (h *History) Rollback(ctx context.Context) (*string, yaerrors.Error) {
	snapshot, err := h.Pop(ctx)
	if err != nil {
		return nil, err
	}

	if snapshot == nil {
		if err := h.fsm.Clear(ctx); err != nil {
			return nil, err.Wrap("[HISTORY] failed to reset conversation")
		}

		return nil, nil
	}

	if err := h.fsm.SetRawState(ctx, snapshot.State); err != nil {
		return nil, err.Wrap("[HISTORY] failed to restore state")
	}

	if err := h.fsm.SetData(ctx, snapshot.Data); err != nil {
		return nil, err.Wrap("[HISTORY] failed to restore data")
	}

	return snapshot.State, nil
}

func (h *History) write(ctx context.Context, entries []Snapshot) yaerrors.Error {
	items := make([]any, 0, len(entries))

	for _, entry := range entries {
		var state any
		if entry.State != nil {
			state = *entry.State
		}

		data := entry.Data
		if data == nil {
			data = map[string]any{}
		}

		items = append(items, map[string]any{
			historyStateKey: state,
			historyDataKey:  data,
		})
	}

	if _, err := h.history.UpdateData(ctx, map[string]any{historyKey: items}); err != nil {
		return err.Wrap("[HISTORY] failed to write history")
	}

	return nil
}
