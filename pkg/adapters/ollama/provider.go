// Package ollama serves completions and the option catalog from an Ollama server.
package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
	"github.com/jmorganca/ollama/api"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "llama3.1"

// Provider implements ports.CompletionProvider and ports.CatalogProvider.
// Message histories go to /api/chat, single prompts to /api/generate.
type Provider struct {
	client  *api.Client
	model   string
	options map[string]interface{}
	logger  *slog.Logger
}

var (
	_ ports.CompletionProvider = (*Provider)(nil)
	_ ports.CatalogProvider    = (*Provider)(nil)
)

type Option func(*Provider)

// WithModel sets the model used when a request names none.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOptions passes extra model options (num_ctx, top_p, ...) with every request.
func WithOptions(opts map[string]interface{}) Option {
	return func(p *Provider) {
		p.options = opts
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New wraps an existing client.
func New(client *api.Client, opts ...Option) *Provider {
	p := &Provider{
		client: client,
		model:  DefaultModel,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromEnvironment connects to the server named by OLLAMA_HOST.
func FromEnvironment(opts ...Option) (*Provider, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return New(client, opts...), nil
}

// Complete returns the full response text. Streamed chunks are concatenated.
func (p *Provider) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	stream := req.Stream
	options := p.requestOptions(req)

	var b strings.Builder
	if len(req.Messages) > 0 {
		err := p.client.Chat(ctx, &api.ChatRequest{
			Model:    model,
			Messages: toMessages(req.Messages),
			Format:   req.Format,
			Options:  options,
			Stream:   &stream,
		}, func(resp api.ChatResponse) error {
			b.WriteString(resp.Message.Content)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("ollama chat: %w", err)
		}
	} else {
		err := p.client.Generate(ctx, &api.GenerateRequest{
			Model:   model,
			Prompt:  req.Prompt,
			Format:  req.Format,
			Options: options,
			Stream:  &stream,
		}, func(resp api.GenerateResponse) error {
			b.WriteString(resp.Response)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("ollama generate: %w", err)
		}
	}

	p.logger.Debug("ollama completion", "model", model, "chat", len(req.Messages) > 0, "chars", b.Len())
	return b.String(), nil
}

func (p *Provider) requestOptions(req ports.CompletionRequest) map[string]interface{} {
	if req.Temperature == nil && len(p.options) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(p.options)+1)
	for k, v := range p.options {
		out[k] = v
	}
	if req.Temperature != nil {
		out["temperature"] = *req.Temperature
	}
	return out
}

// ListOptions returns the names of the locally installed models.
func (p *Provider) ListOptions(ctx context.Context) ([]string, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama list: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func toMessages(history []domain.Message) []api.Message {
	out := make([]api.Message, len(history))
	for i, m := range history {
		out[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
