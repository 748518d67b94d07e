package domain

import (
	"slices"
)

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Location     *string `json:"location,omitempty"`
	Cycle        *int    `json:"cycle,omitempty"`
	PendingTask  *string `json:"pending_task,omitempty"`
	SilenceCount *int    `json:"silence_count,omitempty"`
	LastResult   *string `json:"last_result,omitempty"`

	History *HistoryDelta `json:"history,omitempty"`
	Pending *PendingDelta `json:"pending_items,omitempty"`

	Options []string `json:"available_options,omitempty"`
}

// HistoryDelta represents changes to the message history.
// Reset is set when the history was discarded by a restart; Appended then holds the whole new history.
type HistoryDelta struct {
	Reset    bool      `json:"reset,omitempty"`
	Appended []Message `json:"appended"`
}

// PendingDelta represents changes to the pending order items.
type PendingDelta struct {
	Reset    bool          `json:"reset,omitempty"`
	Appended []PendingItem `json:"appended"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.Location != newState.Location {
		path := newState.Location.String()
		diff.Location = &path
	}
	if oldState == nil || oldState.Cycle != newState.Cycle {
		diff.Cycle = &newState.Cycle
	}
	if oldState == nil || oldState.PendingTask != newState.PendingTask {
		diff.PendingTask = &newState.PendingTask
	}

	oldCtx := TurnContext{}
	if oldState != nil {
		oldCtx = oldState.Context
	}
	newCtx := newState.Context

	if oldState == nil || oldCtx.SilenceCount != newCtx.SilenceCount {
		diff.SilenceCount = &newCtx.SilenceCount
	}
	if newCtx.LastResultText() != oldCtx.LastResultText() {
		text := newCtx.LastResultText()
		diff.LastResult = &text
	}
	if !slices.Equal(oldCtx.AvailableOptions, newCtx.AvailableOptions) {
		diff.Options = newCtx.AvailableOptions
	}

	diff.History = diffHistory(oldCtx.History, newCtx.History)
	diff.Pending = diffPending(oldCtx.PendingItems, newCtx.PendingItems)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffHistory assumes append-only behavior within a cycle.
func diffHistory(old, new []Message) *HistoryDelta {
	if len(new) >= len(old) && slices.Equal(old, new[:len(old)]) {
		if len(new) == len(old) {
			return nil
		}
		return &HistoryDelta{Appended: new[len(old):]}
	}
	return &HistoryDelta{Reset: true, Appended: new}
}

func diffPending(old, new []PendingItem) *PendingDelta {
	if len(new) >= len(old) && slices.Equal(old, new[:len(old)]) {
		if len(new) == len(old) {
			return nil
		}
		return &PendingDelta{Appended: new[len(old):]}
	}
	return &PendingDelta{Reset: true, Appended: new}
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Location == nil &&
		d.Cycle == nil &&
		d.PendingTask == nil &&
		d.SilenceCount == nil &&
		d.LastResult == nil &&
		d.History == nil &&
		d.Pending == nil &&
		d.Options == nil
}
