package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// ErrClosed is returned when posting to a closed provider.
var ErrClosed = errors.New("speech provider closed")

// DefaultBridgeBuffer is the capacity of the event channel of a Bridge.
const DefaultBridgeBuffer = 32

// Directive is a speech instruction waiting for a remote client.
type Directive struct {
	Seq      int                    `json:"seq"`
	Type     string                 `json:"type"`
	Text     string                 `json:"text,omitempty"`
	Settings *domain.SpeechSettings `json:"settings,omitempty"`
	IssuedAt time.Time              `json:"issued_at"`
}

// Bridge is a SpeechProvider whose recognizer and synthesizer live elsewhere.
// Directives are queued for the client to drain; the client reports completions with Post.
type Bridge struct {
	mu        sync.Mutex
	events    chan domain.Event
	pending   []Directive
	seq       int
	closed    bool
	autoReady bool
	settings  domain.SpeechSettings
	onIssue   func(Directive)
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithAutoReady makes Prepare report ready immediately.
func WithAutoReady(enabled bool) BridgeOption {
	return func(b *Bridge) {
		b.autoReady = enabled
	}
}

// WithDirectiveHook calls fn with every directive as it is issued, so it can be
// pushed to the client instead of drained. fn must not block.
func WithDirectiveHook(fn func(Directive)) BridgeOption {
	return func(b *Bridge) {
		b.onIssue = fn
	}
}

// NewBridge creates an open bridge.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{events: make(chan domain.Event, DefaultBridgeBuffer)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Prepare(ctx context.Context, settings domain.SpeechSettings) error {
	b.mu.Lock()
	b.settings = settings
	b.mu.Unlock()

	b.enqueue(Directive{Type: domain.ActionPrepare, Settings: &settings})
	if b.autoReady {
		return b.Post(ctx, domain.Ready())
	}
	return nil
}

func (b *Bridge) Listen(ctx context.Context) error {
	b.enqueue(Directive{Type: domain.ActionListen})
	return nil
}

func (b *Bridge) Speak(ctx context.Context, text string) error {
	b.enqueue(Directive{Type: domain.ActionSpeak, Text: text})
	return nil
}

func (b *Bridge) Events() <-chan domain.Event {
	return b.events
}

// Settings returns the settings received with the last PREPARE.
func (b *Bridge) Settings() domain.SpeechSettings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings
}

// Post delivers a speech event reported by the client.
// Only speech events (ready, recognized, no-input, speak-complete) are accepted.
func (b *Bridge) Post(ctx context.Context, ev domain.Event) error {
	if !ev.Type.IsSpeech() {
		return fmt.Errorf("%q is not a speech event", ev.Type)
	}
	return b.deliver(ctx, ev)
}

// Trigger queues the start signal behind the speech events posted before it.
func (b *Bridge) Trigger(ctx context.Context) error {
	return b.deliver(ctx, domain.Start())
}

func (b *Bridge) deliver(ctx context.Context, ev domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("speech event buffer full (%d)", cap(b.events))
	}
}

// Drain returns the directives issued since the previous call.
func (b *Bridge) Drain() []Directive {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// Close ends the event stream. It is safe to call more than once.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

func (b *Bridge) enqueue(d Directive) {
	b.mu.Lock()
	b.seq++
	d.Seq = b.seq
	d.IssuedAt = time.Now()
	b.pending = append(b.pending, d)
	b.mu.Unlock()

	if b.onIssue != nil {
		b.onIssue(d)
	}
}
