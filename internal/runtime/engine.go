package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
	"github.com/google/uuid"
)

// maxSettleDepth bounds chains of eventless transitions.
const maxSettleDepth = 16

// Engine is the dialogue state machine. It is pure: Step never performs I/O and
// never mutates the state it is given. Directives for the host are returned instead.
type Engine struct {
	variant     domain.Variant
	catalog     []domain.CatalogItem
	silence     SilencePolicy
	settings    domain.SpeechSettings
	greeting    string
	recover     bool
	interpreter *Interpreter
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	newID       func() string
	now         func() time.Time
	charts      map[domain.Variant]*chart
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithVariant selects the dialogue started by Start.
func WithVariant(v domain.Variant) EngineOption {
	return func(e *Engine) {
		e.variant = v
	}
}

// WithCatalog sets the static menu used to answer menu questions.
func WithCatalog(items []domain.CatalogItem) EngineOption {
	return func(e *Engine) {
		e.catalog = items
	}
}

// WithSilencePolicy overrides the default silence policy.
func WithSilencePolicy(p SilencePolicy) EngineOption {
	return func(e *Engine) {
		e.silence = p
	}
}

// WithSpeechSettings sets the settings forwarded with the PREPARE directive.
func WithSpeechSettings(s domain.SpeechSettings) EngineOption {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithGreeting replaces the ordering greeting.
func WithGreeting(text string) EngineOption {
	return func(e *Engine) {
		e.greeting = text
	}
}

// WithRecovery makes task failures continue the dialogue instead of stalling it.
func WithRecovery(enabled bool) EngineOption {
	return func(e *Engine) {
		e.recover = enabled
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDGenerator overrides how task IDs are generated.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		e.newID = fn
	}
}

// WithClock overrides the time source used for hook timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine. Without options it runs the ordering dialogue.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		variant:  domain.VariantOrdering,
		silence:  DefaultSilencePolicy(),
		settings: domain.DefaultSpeechSettings(),
		greeting: OrderingGreeting,
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.interpreter = NewInterpreter(e.catalog)
	e.charts = map[domain.Variant]*chart{
		domain.VariantChat:     e.buildChart(domain.VariantChat),
		domain.VariantOrdering: e.buildChart(domain.VariantOrdering),
	}
	return e
}

// Variant returns the dialogue started by Start.
func (e *Engine) Variant() domain.Variant {
	return e.variant
}

// Start creates the initial state and runs the entry of Prepare.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.State, []domain.ActionRequest, error) {
	return e.StartVariant(ctx, sessionID, e.variant)
}

// StartVariant is Start for an explicit variant.
func (e *Engine) StartVariant(ctx context.Context, sessionID string, v domain.Variant) (*domain.State, []domain.ActionRequest, error) {
	c, ok := e.charts[v]
	if !ok {
		return nil, nil, fmt.Errorf("unknown dialogue variant %q", v)
	}
	s := &step{ctx: ctx, engine: e, chart: c, state: domain.NewState(sessionID, v)}
	s.enterFrom(domain.AtPrepare)
	if err := s.settle(); err != nil {
		return nil, nil, err
	}
	return s.state, s.actions, nil
}

// Step applies a single event. On ErrUnhandledEvent and ErrDeadLetter the
// original state is returned unchanged together with the error.
func (e *Engine) Step(ctx context.Context, current *domain.State, ev domain.Event) (*domain.State, []domain.ActionRequest, error) {
	if current == nil {
		return nil, nil, fmt.Errorf("step %s: nil state", ev.Type)
	}
	c, ok := e.charts[current.Variant]
	if !ok {
		return nil, nil, fmt.Errorf("unknown dialogue variant %q", current.Variant)
	}

	next := current.Snapshot()
	if ev.Type == domain.EventTaskDone || ev.Type == domain.EventTaskFailed {
		if ev.TaskID == "" || ev.TaskID != next.PendingTask {
			return current, nil, fmt.Errorf("%w: task %q in %s", domain.ErrDeadLetter, ev.TaskID, current.Path())
		}
		next.PendingTask = ""
	}

	r, ok := c.match(next, ev)
	if !ok {
		return current, nil, fmt.Errorf("%w: %s in %s", domain.ErrUnhandledEvent, ev.Type, current.Path())
	}

	s := &step{ctx: ctx, engine: e, chart: c, state: next}
	s.take(r, ev)
	if err := s.settle(); err != nil {
		return nil, nil, err
	}
	return s.state, s.actions, nil
}

// Controller returns a view of the engine that starts sessions of variant v.
func (e *Engine) Controller(v domain.Variant) (ports.Controller, error) {
	if _, ok := e.charts[v]; !ok {
		return nil, fmt.Errorf("unknown dialogue variant %q", v)
	}
	return variantController{engine: e, variant: v}, nil
}

type variantController struct {
	engine  *Engine
	variant domain.Variant
}

func (c variantController) Start(ctx context.Context, sessionID string) (*domain.State, []domain.ActionRequest, error) {
	return c.engine.StartVariant(ctx, sessionID, c.variant)
}

func (c variantController) Step(ctx context.Context, s *domain.State, ev domain.Event) (*domain.State, []domain.ActionRequest, error) {
	return c.engine.Step(ctx, s, ev)
}

func (c variantController) Inspect() []domain.StateNode {
	return c.engine.InspectVariant(c.variant)
}

// Inspect returns the chart of the default variant.
func (e *Engine) Inspect() []domain.StateNode {
	return e.InspectVariant(e.variant)
}

// InspectVariant returns the chart of v, or nil for an unknown variant.
func (e *Engine) InspectVariant(v domain.Variant) []domain.StateNode {
	c, ok := e.charts[v]
	if !ok {
		return nil
	}
	return c.nodes()
}

func (e *Engine) emitStateEnter(ctx context.Context, s *domain.State, loc domain.Location) {
	if e.hooks.OnStateEnter == nil {
		return
	}
	e.hooks.OnStateEnter(ctx, &domain.StateEvent{
		HookBase:     domain.HookBase{Timestamp: e.now(), Type: domain.HookStateEnter, SessionID: s.SessionID},
		State:        loc.String(),
		SilenceCount: s.Context.SilenceCount,
	})
}

func (e *Engine) emitStateLeave(ctx context.Context, s *domain.State, loc domain.Location) {
	if e.hooks.OnStateLeave == nil {
		return
	}
	e.hooks.OnStateLeave(ctx, &domain.StateEvent{
		HookBase:     domain.HookBase{Timestamp: e.now(), Type: domain.HookStateLeave, SessionID: s.SessionID},
		State:        loc.String(),
		SilenceCount: s.Context.SilenceCount,
	})
}
