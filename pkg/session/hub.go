package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
	"github.com/aretw0/voiceloop/pkg/runner"
	"github.com/google/uuid"
)

// ControllerFactory returns the dialogue controller for a variant.
type ControllerFactory func(domain.Variant) (ports.Controller, error)

// CommitObserver receives every commit of every hosted session.
type CommitObserver func(sessionID string, c runner.Commit)

// DirectiveObserver receives every speech directive of every hosted session.
type DirectiveObserver func(sessionID string, d speech.Directive)

// Info describes a live session.
type Info struct {
	ID        string         `json:"id"`
	Variant   domain.Variant `json:"variant"`
	State     string         `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
}

type live struct {
	id        string
	variant   domain.Variant
	createdAt time.Time
	bridge    *speech.Bridge
	runner    *runner.Runner
	cancel    context.CancelFunc
}

func (l *live) info() Info {
	in := Info{ID: l.id, Variant: l.variant, CreatedAt: l.createdAt}
	if s := l.runner.State(); s != nil {
		in.State = s.Path()
	}
	return in
}

// Hub hosts the live sessions of a server. Each session gets its own runner and
// speech bridge; completions and snapshots go through shared providers.
type Hub struct {
	controllers    ControllerFactory
	executor       runner.TaskExecutor
	manager        *Manager
	hooks          domain.LifecycleHooks
	observers      []CommitObserver
	directives     []DirectiveObserver
	autoReady      bool
	defaultVariant domain.Variant
	logger         *slog.Logger
	newID          func() string

	mu       sync.RWMutex
	sessions map[string]*live
	wg       sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger configures the structured logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithHubHooks registers lifecycle hooks on every runner.
func WithHubHooks(hooks domain.LifecycleHooks) HubOption {
	return func(h *Hub) {
		h.hooks = hooks
	}
}

// WithCommitObserver registers an observer for all sessions.
func WithCommitObserver(obs CommitObserver) HubOption {
	return func(h *Hub) {
		h.observers = append(h.observers, obs)
	}
}

// WithDirectiveObserver registers an observer for the directives of all sessions.
func WithDirectiveObserver(obs DirectiveObserver) HubOption {
	return func(h *Hub) {
		h.directives = append(h.directives, obs)
	}
}

// WithAutoReady makes session bridges report ready as soon as they are prepared.
func WithAutoReady(enabled bool) HubOption {
	return func(h *Hub) {
		h.autoReady = enabled
	}
}

// WithDefaultVariant selects the variant used when Create receives none.
func WithDefaultVariant(v domain.Variant) HubOption {
	return func(h *Hub) {
		h.defaultVariant = v
	}
}

// NewHub creates a hub. manager may be nil, in which case no snapshots are kept.
func NewHub(controllers ControllerFactory, executor runner.TaskExecutor, manager *Manager, opts ...HubOption) *Hub {
	h := &Hub{
		controllers:    controllers,
		executor:       executor,
		manager:        manager,
		defaultVariant: domain.VariantOrdering,
		logger:         logging.NewNop(),
		newID:          uuid.NewString,
		sessions:       make(map[string]*live),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create starts a new session and returns once its initial state is committed
// and the speech provider has been prepared.
// The session is not bound to ctx; it lives until Close or Shutdown.
func (h *Hub) Create(ctx context.Context, variant domain.Variant) (Info, error) {
	if variant == "" {
		variant = h.defaultVariant
	}
	ctrl, err := h.controllers(variant)
	if err != nil {
		return Info{}, err
	}

	id := h.newID()
	bridge := speech.NewBridge(
		speech.WithAutoReady(h.autoReady),
		speech.WithDirectiveHook(func(d speech.Directive) {
			for _, obs := range h.directives {
				obs(id, d)
			}
		}),
	)
	opts := []runner.Option{
		runner.WithSessionID(id),
		runner.WithLogger(h.logger),
		runner.WithLifecycleHooks(h.hooks),
	}
	if h.manager != nil {
		opts = append(opts, runner.WithStore(h.manager))
	}
	for _, obs := range h.observers {
		opts = append(opts, runner.WithObserver(func(_ context.Context, c runner.Commit) { obs(id, c) }))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l := &live{
		id:        id,
		variant:   variant,
		createdAt: time.Now(),
		bridge:    bridge,
		runner:    runner.New(ctrl, bridge, h.executor, opts...),
		cancel:    cancel,
	}

	h.mu.Lock()
	h.sessions[id] = l
	h.mu.Unlock()

	errc := make(chan error, 1)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.remove(id)
		err := l.runner.Run(runCtx)
		if err != nil {
			h.logger.Error("session stopped", "session_id", id, "err", err)
		}
		errc <- err
	}()

	select {
	case <-l.runner.Ready():
		h.logger.Info("session created", "session_id", id, "variant", variant)
		return l.info(), nil
	case err := <-errc:
		cancel()
		if err == nil {
			err = runner.ErrStopped
		}
		return Info{}, fmt.Errorf("failed to create session: %w", err)
	case <-ctx.Done():
		cancel()
		bridge.Close()
		return Info{}, ctx.Err()
	}
}

// List returns the live sessions, oldest first.
func (h *Hub) List() []Info {
	h.mu.RLock()
	out := make([]Info, 0, len(h.sessions))
	for _, l := range h.sessions {
		out = append(out, l.info())
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b Info) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Get returns the current state of a live session, or the last snapshot of a closed one.
func (h *Hub) Get(ctx context.Context, id string) (*domain.State, error) {
	if l, err := h.lookup(id); err == nil {
		return l.runner.State(), nil
	}
	if h.manager == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return h.manager.Load(ctx, id)
}

// Start sends the start signal to a session. It shares the bridge queue with
// posted speech events, so it is handled after the events posted before it.
func (h *Hub) Start(ctx context.Context, id string) error {
	l, err := h.lookup(id)
	if err != nil {
		return err
	}
	return l.bridge.Trigger(ctx)
}

// Post delivers a speech event reported by the client of a session.
func (h *Hub) Post(ctx context.Context, id string, ev domain.Event) error {
	l, err := h.lookup(id)
	if err != nil {
		return err
	}
	return l.bridge.Post(ctx, ev)
}

// Drain returns the speech directives a session issued since the last call.
func (h *Hub) Drain(id string) ([]speech.Directive, error) {
	l, err := h.lookup(id)
	if err != nil {
		return nil, err
	}
	return l.bridge.Drain(), nil
}

// Close stops a live session. Its last snapshot stays in the store.
func (h *Hub) Close(ctx context.Context, id string) error {
	l, err := h.lookup(id)
	if err != nil {
		return err
	}
	l.cancel()
	l.bridge.Close()
	select {
	case <-l.runner.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	h.remove(id)
	h.logger.Info("session closed", "session_id", id)
	return nil
}

// Shutdown closes every live session and waits for their runners to exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		if err := h.Close(ctx, id); err != nil && ctx.Err() != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inspect returns the state chart of a variant.
func (h *Hub) Inspect(variant domain.Variant) ([]domain.StateNode, error) {
	if variant == "" {
		variant = h.defaultVariant
	}
	ctrl, err := h.controllers(variant)
	if err != nil {
		return nil, err
	}
	return ctrl.Inspect(), nil
}

// Snapshots exposes the snapshot manager, which may be nil.
func (h *Hub) Snapshots() *Manager {
	return h.manager
}

func (h *Hub) lookup(id string) (*live, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	l, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return l, nil
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}
