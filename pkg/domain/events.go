package domain

import (
	"context"
	"time"
)

// EventType names the inputs the controller reacts to.
type EventType string

const (
	EventReady         EventType = "ready"
	EventStart         EventType = "start"
	EventRecognized    EventType = "recognized"
	EventNoInput       EventType = "no-input"
	EventSpeakComplete EventType = "speak-complete"
	EventTaskDone      EventType = "task-done"
	EventTaskFailed    EventType = "task-failed"
)

// IsSpeech reports whether the event originates from the speech provider.
func (t EventType) IsSpeech() bool {
	switch t {
	case EventReady, EventRecognized, EventNoInput, EventSpeakComplete:
		return true
	}
	return false
}

// Event is a single message on the controller queue.
type Event struct {
	Type      EventType `json:"type"`
	Utterance string    `json:"utterance,omitempty"`

	// Task outcome fields.
	TaskID  string   `json:"task_id,omitempty"`
	Text    string   `json:"text,omitempty"`
	Options []string `json:"options,omitempty"`
	Err     error    `json:"-"`
}

func Ready() Event         { return Event{Type: EventReady} }
func Start() Event         { return Event{Type: EventStart} }
func NoInput() Event       { return Event{Type: EventNoInput} }
func SpeakComplete() Event { return Event{Type: EventSpeakComplete} }

// Recognized carries a final recognition result.
func Recognized(utterance string) Event {
	return Event{Type: EventRecognized, Utterance: utterance}
}

// TaskDone carries the raw text of a completion task.
func TaskDone(taskID, text string) Event {
	return Event{Type: EventTaskDone, TaskID: taskID, Text: text}
}

// OptionsFetched carries the result of a catalog listing task.
func OptionsFetched(taskID string, options []string) Event {
	return Event{Type: EventTaskDone, TaskID: taskID, Options: options}
}

// TaskFailed carries the normalized failure of a task.
func TaskFailed(taskID string, err error) Event {
	return Event{Type: EventTaskFailed, TaskID: taskID, Err: err}
}

// HookType defines the category of a lifecycle notification.
type HookType string

const (
	HookStateEnter   HookType = "state_enter"
	HookStateLeave   HookType = "state_leave"
	HookTaskStart    HookType = "task_start"
	HookTaskReturn   HookType = "task_return"
	HookEventDropped HookType = "event_dropped"
)

// HookBase contains common fields for all lifecycle notifications.
type HookBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      HookType  `json:"type"`
	SessionID string    `json:"session_id"`
}

// StateEvent represents entry into or exit from a state.
type StateEvent struct {
	HookBase
	State        string `json:"state"`
	SilenceCount int    `json:"silence_count"`
}

// TaskEvent represents the start or the outcome of an interpretation task.
type TaskEvent struct {
	HookBase
	TaskID   string        `json:"task_id"`
	Kind     TaskKind      `json:"kind"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// DropEvent reports an event the controller did not act upon.
type DropEvent struct {
	HookBase
	State  string    `json:"state"`
	Event  EventType `json:"event"`
	Reason string    `json:"reason"`
}

// LifecycleHooks defines callbacks for controller observability.
type LifecycleHooks struct {
	OnStateEnter   func(context.Context, *StateEvent)
	OnStateLeave   func(context.Context, *StateEvent)
	OnTaskStart    func(context.Context, *TaskEvent)
	OnTaskReturn   func(context.Context, *TaskEvent)
	OnEventDropped func(context.Context, *DropEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateEnter:   chain(h.OnStateEnter, other.OnStateEnter),
		OnStateLeave:   chain(h.OnStateLeave, other.OnStateLeave),
		OnTaskStart:    chain(h.OnTaskStart, other.OnTaskStart),
		OnTaskReturn:   chain(h.OnTaskReturn, other.OnTaskReturn),
		OnEventDropped: chain(h.OnEventDropped, other.OnEventDropped),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e T) {
		a(ctx, e)
		b(ctx, e)
	}
}
