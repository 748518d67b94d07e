package voiceloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/internal/runtime"
	"github.com/aretw0/voiceloop/pkg/catalog"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
	"github.com/aretw0/voiceloop/pkg/runner"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/aretw0/voiceloop/pkg/task"
)

// Version is the release of the library and the voiceloop binary.
var Version = "0.1.0"

// ErrNoCompletion is returned when a session is requested from an engine
// that has no completion provider.
var ErrNoCompletion = errors.New("no completion provider configured")

// Engine is the high-level entry point of the library. It wraps the dialogue
// state machine and builds the runners that host it.
type Engine struct {
	runtime     *runtime.Engine
	variant     domain.Variant
	catalog     []domain.CatalogItem
	maxSilences *int
	recovery    bool
	greeting    string
	settings    *domain.SpeechSettings
	completion  ports.CompletionProvider
	options     ports.CatalogProvider
	taskOpts    []task.Option
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithVariant selects the dialogue new sessions run. The default is ordering.
func WithVariant(v domain.Variant) Option {
	return func(e *Engine) {
		e.variant = v
	}
}

// WithCatalog sets the menu read out for menu questions. The default is
// catalog.Default.
func WithCatalog(items []domain.CatalogItem) Option {
	return func(e *Engine) {
		e.catalog = items
	}
}

// WithMaxSilences sets how many consecutive silences are re-prompted before
// the dialogue says goodbye.
func WithMaxSilences(n int) Option {
	return func(e *Engine) {
		e.maxSilences = &n
	}
}

// WithRecovery makes provider failures continue the dialogue instead of stalling it.
func WithRecovery(enabled bool) Option {
	return func(e *Engine) {
		e.recovery = enabled
	}
}

// WithGreeting replaces the ordering greeting.
func WithGreeting(text string) Option {
	return func(e *Engine) {
		e.greeting = text
	}
}

// WithSpeechSettings sets the settings forwarded to the speech provider.
func WithSpeechSettings(s domain.SpeechSettings) Option {
	return func(e *Engine) {
		e.settings = &s
	}
}

// WithCompletion sets the language model backend. If p also lists options it
// serves fetch-options tasks, unless WithCatalogProvider says otherwise.
func WithCompletion(p ports.CompletionProvider, opts ...task.Option) Option {
	return func(e *Engine) {
		e.completion = p
		e.taskOpts = append(e.taskOpts, opts...)
	}
}

// WithCatalogProvider sets where the options announced in the chat greeting come from.
func WithCatalogProvider(p ports.CatalogProvider) Option {
	return func(e *Engine) {
		e.options = p
	}
}

// WithLifecycleHooks registers observability hooks on the engine and its tasks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		variant: domain.VariantOrdering,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.variant.Valid() {
		return nil, fmt.Errorf("unknown dialogue variant %q", e.variant)
	}
	if e.maxSilences != nil && *e.maxSilences < 0 {
		return nil, fmt.Errorf("max silences must not be negative, got %d", *e.maxSilences)
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}
	if e.options == nil {
		if p, ok := e.completion.(ports.CatalogProvider); ok {
			e.options = p
		}
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithVariant(e.variant),
		runtime.WithCatalog(e.catalog),
		runtime.WithRecovery(e.recovery),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
	}
	if e.maxSilences != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithSilencePolicy(runtime.SilencePolicy{MaxSilences: *e.maxSilences}))
	}
	if e.greeting != "" {
		runtimeOpts = append(runtimeOpts, runtime.WithGreeting(e.greeting))
	}
	if e.settings != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithSpeechSettings(*e.settings))
	}
	e.runtime = runtime.NewEngine(runtimeOpts...)
	return e, nil
}

// Variant returns the dialogue new sessions run.
func (e *Engine) Variant() domain.Variant {
	return e.variant
}

// Start creates the initial state of a session and the directives of its entry.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.State, []domain.ActionRequest, error) {
	return e.runtime.Start(ctx, sessionID)
}

// Step applies one event. It never mutates current.
func (e *Engine) Step(ctx context.Context, current *domain.State, ev domain.Event) (*domain.State, []domain.ActionRequest, error) {
	return e.runtime.Step(ctx, current, ev)
}

// Inspect returns the state chart of the configured variant.
func (e *Engine) Inspect() []domain.StateNode {
	return e.runtime.Inspect()
}

// InspectVariant returns the state chart of v.
func (e *Engine) InspectVariant(v domain.Variant) []domain.StateNode {
	return e.runtime.InspectVariant(v)
}

// Controller returns the engine as a Controller for sessions of variant v.
func (e *Engine) Controller(v domain.Variant) (ports.Controller, error) {
	return e.runtime.Controller(v)
}

// Executor returns the task executor backed by the configured providers.
func (e *Engine) Executor() (runner.TaskExecutor, error) {
	if e.completion == nil {
		return nil, ErrNoCompletion
	}
	opts := append([]task.Option{
		task.WithLogger(e.logger),
		task.WithLifecycleHooks(e.hooks),
	}, e.taskOpts...)
	return task.New(e.completion, e.options, opts...), nil
}

// NewRunner hosts one session of the configured variant on speech.
func (e *Engine) NewRunner(speech ports.SpeechProvider, opts ...runner.Option) (*runner.Runner, error) {
	executor, err := e.Executor()
	if err != nil {
		return nil, err
	}
	opts = append([]runner.Option{
		runner.WithLogger(e.logger),
		runner.WithLifecycleHooks(e.hooks),
	}, opts...)
	return runner.New(e.runtime, speech, executor, opts...), nil
}

// NewHub hosts many sessions, each on its own speech bridge. manager may be nil.
func (e *Engine) NewHub(manager *session.Manager, opts ...session.HubOption) (*session.Hub, error) {
	executor, err := e.Executor()
	if err != nil {
		return nil, err
	}
	opts = append([]session.HubOption{
		session.WithHubLogger(e.logger),
		session.WithHubHooks(e.hooks),
		session.WithDefaultVariant(e.variant),
	}, opts...)
	return session.NewHub(e.runtime.Controller, executor, manager, opts...), nil
}
