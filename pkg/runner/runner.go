package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
	"github.com/google/uuid"
)

var (
	// ErrStopped is returned by Send once the runner has exited.
	ErrStopped = errors.New("runner stopped")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("runner already running")
)

// TaskExecutor performs a RUN_TASK directive and returns its outcome event.
// *task.Runner implements it.
type TaskExecutor interface {
	Run(ctx context.Context, sessionID string, req domain.TaskRequest) domain.Event
}

// Commit is what observers receive after each step.
type Commit struct {
	State   *domain.State
	Diff    *domain.StateDiff // nil when the state did not change
	Actions []domain.ActionRequest
}

// Observer is notified on the dispatcher goroutine. It must not block.
type Observer func(ctx context.Context, c Commit)

// Runner hosts one session: it owns the current state and is its only writer.
type Runner struct {
	engine    ports.Controller
	speech    ports.SpeechProvider
	executor  TaskExecutor
	store     ports.StateStore
	hooks     domain.LifecycleHooks
	observers []Observer
	logger    *slog.Logger
	sessionID string
	queueSize int

	queue   chan domain.Event
	ready   chan struct{}
	done    chan struct{}
	started atomic.Bool
	tasks   sync.WaitGroup

	mu    sync.RWMutex
	state *domain.State
}

// New creates a runner. Run must be called to start processing.
func New(engine ports.Controller, speech ports.SpeechProvider, executor TaskExecutor, opts ...Option) *Runner {
	r := &Runner{
		engine:    engine,
		speech:    speech,
		executor:  executor,
		logger:    logging.NewNop(),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sessionID == "" {
		r.sessionID = uuid.NewString()
	}
	r.queue = make(chan domain.Event, r.queueSize)
	r.ready = make(chan struct{})
	r.done = make(chan struct{})
	return r
}

// SessionID returns the hosted session.
func (r *Runner) SessionID() string {
	return r.sessionID
}

// State returns a snapshot of the last committed state, or nil before Run.
func (r *Runner) State() *domain.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Snapshot()
}

// Ready is closed once the initial state has been committed and its
// directives issued.
func (r *Runner) Ready() <-chan struct{} {
	return r.ready
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Trigger sends the start signal. While a session is in progress it restarts it.
func (r *Runner) Trigger(ctx context.Context) error {
	return r.Send(ctx, domain.Start())
}

// Send enqueues an event for the dispatcher.
func (r *Runner) Send(ctx context.Context, ev domain.Event) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// Run starts the session and processes events until ctx is cancelled or the
// speech provider closes its event channel. Outstanding tasks are abandoned.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(r.done)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		r.tasks.Wait()
	}()

	state, actions, err := r.engine.Start(ctx, r.sessionID)
	if err != nil {
		return fmt.Errorf("failed to start session %s: %w", r.sessionID, err)
	}
	r.commit(ctx, state, actions)
	r.execute(ctx, actions)
	close(r.ready)

	events := r.speech.Events()
	for {
		ev, ok := r.next(ctx, events)
		if !ok {
			return nil
		}
		if err := r.dispatch(ctx, ev); err != nil {
			return err
		}
	}
}

// next returns the next event to dispatch. Speech events already waiting are
// taken before the queue, so a trigger sent after them cannot overtake them.
func (r *Runner) next(ctx context.Context, events <-chan domain.Event) (domain.Event, bool) {
	if ctx.Err() != nil {
		return domain.Event{}, false
	}

	var (
		ev   domain.Event
		open = true
	)
	select {
	case ev, open = <-events:
	default:
		select {
		case <-ctx.Done():
			return domain.Event{}, false
		case ev, open = <-events:
		case ev = <-r.queue:
		}
	}
	if !open {
		r.logger.Debug("speech provider closed", "session_id", r.sessionID)
		return domain.Event{}, false
	}
	return ev, true
}

func (r *Runner) dispatch(ctx context.Context, ev domain.Event) error {
	current := r.current()

	if ev.Type == domain.EventRecognized {
		clean, err := SanitizeUtterance(ev.Utterance)
		if err != nil {
			r.drop(ctx, current, ev, err)
			return nil
		}
		ev.Utterance = clean
	}

	next, actions, err := r.engine.Step(ctx, current, ev)
	if errors.Is(err, domain.ErrUnhandledEvent) || errors.Is(err, domain.ErrDeadLetter) {
		r.drop(ctx, current, ev, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("step error: %w", err)
	}

	r.commit(ctx, next, actions)
	r.execute(ctx, actions)
	return nil
}

func (r *Runner) current() *domain.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// commit publishes next as the current state.
func (r *Runner) commit(ctx context.Context, next *domain.State, actions []domain.ActionRequest) {
	r.mu.Lock()
	prev := r.state
	r.state = next
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Save(context.WithoutCancel(ctx), r.sessionID, next.Snapshot()); err != nil {
			r.logger.Error("failed to save snapshot", "session_id", r.sessionID, "err", err)
		} else {
			r.logger.Debug("state saved", "session_id", r.sessionID, "state", next.Path())
		}
	}

	if len(r.observers) == 0 {
		return
	}
	c := Commit{State: next.Snapshot(), Diff: domain.Diff(prev, next), Actions: actions}
	for _, obs := range r.observers {
		obs(ctx, c)
	}
}

func (r *Runner) drop(ctx context.Context, current *domain.State, ev domain.Event, reason error) {
	r.logger.Debug("event dropped",
		"session_id", r.sessionID,
		"state", current.Path(),
		"event", ev.Type,
		"task_id", ev.TaskID,
		"err", reason,
	)
	if r.hooks.OnEventDropped != nil {
		r.hooks.OnEventDropped(ctx, &domain.DropEvent{
			HookBase: domain.HookBase{Timestamp: time.Now(), Type: domain.HookEventDropped, SessionID: r.sessionID},
			State:    current.Path(),
			Event:    ev.Type,
			Reason:   reason.Error(),
		})
	}
}

// execute carries out directives in order. Speech directives only hand work to
// the provider; their completion arrives later as events.
func (r *Runner) execute(ctx context.Context, actions []domain.ActionRequest) {
	for _, act := range actions {
		var err error
		switch act.Type {
		case domain.ActionPrepare:
			settings, _ := act.Payload.(domain.SpeechSettings)
			err = r.speech.Prepare(ctx, settings)
		case domain.ActionListen:
			err = r.speech.Listen(ctx)
		case domain.ActionSpeak:
			text, _ := act.SpeakText()
			err = r.speech.Speak(ctx, text)
		case domain.ActionRunTask:
			if req, ok := act.Task(); ok {
				r.spawn(ctx, req)
			}
		default:
			r.logger.Warn("unknown directive", "session_id", r.sessionID, "type", act.Type)
		}
		if err != nil {
			r.logger.Error("speech directive failed",
				"session_id", r.sessionID,
				"directive", act.Type,
				"err", err,
			)
		}
	}
}

// spawn runs a task detached from the dispatcher. Its single outcome is posted
// back to the queue unless the runner is shutting down.
func (r *Runner) spawn(ctx context.Context, req domain.TaskRequest) {
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		ev := r.executor.Run(ctx, r.sessionID, req)
		select {
		case r.queue <- ev:
		case <-ctx.Done():
		}
	}()
}
