package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnhandledEvent is returned when the active state defines no reaction to an event.
var ErrUnhandledEvent = errors.New("unhandled event")

// ErrDeadLetter is returned for task outcomes that no longer match the pending task.
var ErrDeadLetter = errors.New("dead letter")

var (
	// ErrNoInput signals that the speaker stayed silent.
	ErrNoInput = errors.New("no input")
	// ErrCompletionFailed covers transport errors, bad statuses and malformed bodies.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrParseError signals a structured result that could not be parsed.
	ErrParseError = errors.New("malformed structured result")
	// ErrCatalogFetchFailed signals that the option list could not be fetched.
	ErrCatalogFetchFailed = errors.New("catalog fetch failed")
)

// TaskError is the normalized failure of an interpretation task.
// It matches both its category sentinel and the underlying cause.
type TaskError struct {
	TaskID string
	Kind   TaskKind
	Cause  error
}

// NewTaskError wraps cause for the given task.
func NewTaskError(req TaskRequest, cause error) *TaskError {
	return &TaskError{TaskID: req.ID, Kind: req.Kind, Cause: cause}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: task %s (%s): %v", e.Category(), e.TaskID, e.Kind, e.Cause)
}

// Category returns the sentinel this failure belongs to.
func (e *TaskError) Category() error {
	if e.Kind == TaskFetchOptions {
		return ErrCatalogFetchFailed
	}
	return ErrCompletionFailed
}

func (e *TaskError) Unwrap() []error {
	return []error{e.Category(), e.Cause}
}

// GuardLoopError is returned when eventless transitions do not settle.
type GuardLoopError struct {
	State string
	Depth int
}

func (e *GuardLoopError) Error() string {
	return fmt.Sprintf("eventless transitions did not settle after %d steps (last state %s)", e.Depth, e.State)
}
