package ports

import (
	"context"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// CompletionRequest carries either a full message history or a single prompt.
type CompletionRequest struct {
	Model       string
	Messages    []domain.Message
	Prompt      string
	Format      string // "json" or empty
	Stream      bool
	Temperature *float64
}

// CompletionProvider is an external text-generation service.
// Transport failures and non-success statuses surface as a returned error.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CatalogProvider lists the identifiers offered in a session (models, menu entries).
type CatalogProvider interface {
	ListOptions(ctx context.Context) ([]string, error)
}
