package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// LoggingHooks logs transitions and tasks at debug level and task failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_enter", "session_id", e.SessionID, "state", e.State, "silence_count", e.SilenceCount)
		},
		OnStateLeave: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_leave", "session_id", e.SessionID, "state", e.State)
		},
		OnTaskStart: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "task_start", "session_id", e.SessionID, "task_id", e.TaskID, "kind", e.Kind)
		},
		OnTaskReturn: func(ctx context.Context, e *domain.TaskEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "task_return",
					"session_id", e.SessionID,
					"task_id", e.TaskID,
					"kind", e.Kind,
					"duration", e.Duration,
					"err", e.Err,
				)
				return
			}
			logger.DebugContext(ctx, "task_return", "session_id", e.SessionID, "task_id", e.TaskID, "kind", e.Kind, "duration", e.Duration)
		},
		OnEventDropped: func(ctx context.Context, e *domain.DropEvent) {
			logger.DebugContext(ctx, "event_dropped", "session_id", e.SessionID, "state", e.State, "event", e.Event, "reason", e.Reason)
		},
	}
}
