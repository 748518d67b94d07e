// Package openai serves completions and the option catalog from an
// OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
	go_openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when a request names no model.
const DefaultModel = go_openai.GPT3Dot5Turbo

// ErrEmptyResponse is returned when the API answers without choices.
var ErrEmptyResponse = errors.New("completion returned no choices")

// Provider implements ports.CompletionProvider and ports.CatalogProvider.
type Provider struct {
	client *go_openai.Client
	model  string
	logger *slog.Logger
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

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a provider for apiKey. An empty baseURL keeps the public endpoint.
func New(apiKey, baseURL string, opts ...Option) *Provider {
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return NewFromClient(go_openai.NewClientWithConfig(config), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *go_openai.Client, opts ...Option) *Provider {
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

// Complete sends the history, or the prompt as a single user message.
// A "json" format turns on JSON mode.
func (p *Provider) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	creq := p.request(req)
	if req.Stream {
		return p.stream(ctx, creq)
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	p.logger.Debug("openai completion", "model", creq.Model, "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) stream(ctx context.Context, creq go_openai.ChatCompletionRequest) (string, error) {
	creq.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("openai chat completion stream: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("openai chat completion stream: %w", err)
		}
		if len(chunk.Choices) > 0 {
			b.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	p.logger.Debug("openai streamed completion", "model", creq.Model, "chars", b.Len())
	return b.String(), nil
}

func (p *Provider) request(req ports.CompletionRequest) go_openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}

	history := req.Messages
	if len(history) == 0 {
		history = []domain.Message{domain.UserMessage(req.Prompt)}
	}
	msgs := make([]go_openai.ChatCompletionMessage, len(history))
	for i, m := range history {
		msgs[i] = go_openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	creq := go_openai.ChatCompletionRequest{Model: model, Messages: msgs}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}
	if req.Format == "json" {
		creq.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
			Type: go_openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return creq
}

// ListOptions returns the model IDs the API key can use.
func (p *Provider) ListOptions(ctx context.Context) ([]string, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}
	ids := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
