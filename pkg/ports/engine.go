package ports

import (
	"context"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// Controller is a pure dialogue core: it never performs I/O itself.
// Every call returns a new state and the directives the host must carry out.
type Controller interface {
	// Start creates the initial state of a session.
	Start(ctx context.Context, sessionID string) (*domain.State, []domain.ActionRequest, error)

	// Step applies a single event to state.
	// It returns domain.ErrUnhandledEvent or domain.ErrDeadLetter when the event is ignored.
	Step(ctx context.Context, state *domain.State, event domain.Event) (*domain.State, []domain.ActionRequest, error)

	// Inspect returns the state chart for introspection.
	Inspect() []domain.StateNode
}
