package runner

import (
	"log/slog"

	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
)

// DefaultQueueSize is the number of task outcomes and injected events buffered per session.
const DefaultQueueSize = 64

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithStore configures the StateStore that receives a snapshot after every step.
func WithStore(store ports.StateStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSessionID sets the session ID. A random one is generated otherwise.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.sessionID = id
	}
}

// WithLifecycleHooks registers hooks for dropped events.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// WithObserver registers a function called after every committed step.
func WithObserver(obs Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, obs)
	}
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.queueSize = n
		}
	}
}
