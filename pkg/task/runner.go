package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
)

// DefaultPromptTemperature is used for single-prompt completions (intent and attitude extraction).
const DefaultPromptTemperature = 0.1

// Runner executes TaskRequests against the configured providers.
type Runner struct {
	completion  ports.CompletionProvider
	catalog     ports.CatalogProvider
	model       string
	temperature float64
	stream      bool
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Runner.
type Option func(*Runner)

// WithModel sets the model forwarded with every completion request.
func WithModel(model string) Option {
	return func(r *Runner) {
		r.model = model
	}
}

// WithPromptTemperature overrides the sampling temperature of prompt completions.
func WithPromptTemperature(t float64) Option {
	return func(r *Runner) {
		r.temperature = t
	}
}

// WithStream asks providers to stream. The result is still delivered as a whole.
func WithStream(stream bool) Option {
	return func(r *Runner) {
		r.stream = stream
	}
}

// WithLifecycleHooks registers task start/return hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a task runner. catalog may be nil when no fetch-options tasks are expected.
func New(completion ports.CompletionProvider, catalog ports.CatalogProvider, opts ...Option) *Runner {
	r := &Runner{
		completion:  completion,
		catalog:     catalog,
		temperature: DefaultPromptTemperature,
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs req and returns its single outcome event. It blocks until the provider returns.
func (r *Runner) Run(ctx context.Context, sessionID string, req domain.TaskRequest) domain.Event {
	start := r.now()
	if r.hooks.OnTaskStart != nil {
		r.hooks.OnTaskStart(ctx, &domain.TaskEvent{
			HookBase: domain.HookBase{Timestamp: start, Type: domain.HookTaskStart, SessionID: sessionID},
			TaskID:   req.ID,
			Kind:     req.Kind,
		})
	}

	ev, err := r.run(ctx, req)
	if err != nil {
		taskErr := domain.NewTaskError(req, err)
		r.logger.Error("task failed",
			"session_id", sessionID,
			"task_id", req.ID,
			"kind", req.Kind,
			"err", err,
		)
		ev = domain.TaskFailed(req.ID, taskErr)
		err = taskErr
	}

	if r.hooks.OnTaskReturn != nil {
		end := r.now()
		r.hooks.OnTaskReturn(ctx, &domain.TaskEvent{
			HookBase: domain.HookBase{Timestamp: end, Type: domain.HookTaskReturn, SessionID: sessionID},
			TaskID:   req.ID,
			Kind:     req.Kind,
			Duration: end.Sub(start),
			Err:      err,
		})
	}
	return ev
}

func (r *Runner) run(ctx context.Context, req domain.TaskRequest) (domain.Event, error) {
	switch req.Kind {
	case domain.TaskFetchOptions:
		if r.catalog == nil {
			return domain.Event{}, fmt.Errorf("no catalog provider configured")
		}
		options, err := r.catalog.ListOptions(ctx)
		if err != nil {
			return domain.Event{}, err
		}
		return domain.OptionsFetched(req.ID, options), nil

	case domain.TaskInterpret, domain.TaskAttitude:
		if r.completion == nil {
			return domain.Event{}, fmt.Errorf("no completion provider configured")
		}
		text, err := r.completion.Complete(ctx, r.completionRequest(req))
		if err != nil {
			return domain.Event{}, err
		}
		return domain.TaskDone(req.ID, text), nil

	default:
		return domain.Event{}, fmt.Errorf("unknown task kind %q", req.Kind)
	}
}

func (r *Runner) completionRequest(req domain.TaskRequest) ports.CompletionRequest {
	out := ports.CompletionRequest{
		Model:    r.model,
		Messages: req.Messages,
		Prompt:   req.Prompt,
		Format:   req.Format,
		Stream:   r.stream,
	}
	if req.Prompt != "" {
		t := r.temperature
		out.Temperature = &t
	}
	return out
}
