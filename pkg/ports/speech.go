package ports

import (
	"context"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// SpeechProvider performs speech recognition and synthesis.
//
// Directives return as soon as the provider accepted them; their completion is
// reported asynchronously on Events (ready, recognized, no-input, speak-complete).
type SpeechProvider interface {
	Prepare(ctx context.Context, settings domain.SpeechSettings) error
	Listen(ctx context.Context) error
	Speak(ctx context.Context, text string) error

	// Events is closed when the provider shuts down.
	Events() <-chan domain.Event
}
