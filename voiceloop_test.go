package voiceloop_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/voiceloop"
	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu       sync.Mutex
	requests []ports.CompletionRequest
	reply    string
}

func (f *fakeModel) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, nil
}

func (f *fakeModel) ListOptions(context.Context) ([]string, error) {
	return []string{"llama3.1", "mistral"}, nil
}

func newHub(t *testing.T, opts ...voiceloop.Option) *session.Hub {
	t.Helper()
	eng, err := voiceloop.New(opts...)
	require.NoError(t, err)
	hub, err := eng.NewHub(nil, session.WithAutoReady(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

func drainUntil(t *testing.T, hub *session.Hub, id string, n int) []speech.Directive {
	t.Helper()
	var out []speech.Directive
	require.Eventually(t, func() bool {
		d, err := hub.Drain(id)
		require.NoError(t, err)
		out = append(out, d...)
		return len(out) >= n
	}, time.Second, 5*time.Millisecond)
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := voiceloop.New(voiceloop.WithVariant("karaoke"))
	assert.ErrorContains(t, err, "unknown dialogue variant")

	_, err = voiceloop.New(voiceloop.WithMaxSilences(-1))
	assert.ErrorContains(t, err, "must not be negative")

	eng, err := voiceloop.New()
	require.NoError(t, err)
	assert.Equal(t, domain.VariantOrdering, eng.Variant())
	assert.NotEmpty(t, eng.Inspect())

	_, err = eng.Executor()
	assert.ErrorIs(t, err, voiceloop.ErrNoCompletion)
	_, err = eng.NewHub(nil)
	assert.ErrorIs(t, err, voiceloop.ErrNoCompletion)
}

func TestEngine_ChatGreetingUsesProviderOptions(t *testing.T) {
	model := &fakeModel{reply: "Hi there."}
	hub := newHub(t, voiceloop.WithVariant(domain.VariantChat), voiceloop.WithCompletion(model))
	ctx := context.Background()

	info, err := hub.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantChat, info.Variant)
	require.NoError(t, hub.Start(ctx, info.ID))

	directives := drainUntil(t, hub, info.ID, 2)
	assert.Equal(t, "Hello world! Available models are: llama3.1 mistral", directives[1].Text)

	require.NoError(t, hub.Post(ctx, info.ID, domain.SpeakComplete()))
	require.NoError(t, hub.Post(ctx, info.ID, domain.Recognized("hello")))

	directives = drainUntil(t, hub, info.ID, 2)
	assert.Equal(t, domain.ActionListen, directives[0].Type)
	assert.Equal(t, "Hi there.", directives[1].Text)

	model.mu.Lock()
	defer model.mu.Unlock()
	require.Len(t, model.requests, 1)
	assert.Equal(t, "hello", model.requests[0].Messages[len(model.requests[0].Messages)-1].Content)
}

func TestEngine_CustomGreetingAndSettings(t *testing.T) {
	settings := domain.DefaultSpeechSettings()
	settings.Voice = "en-GB-RyanNeural"
	hub := newHub(t,
		voiceloop.WithGreeting("Hello, what can I get you?"),
		voiceloop.WithSpeechSettings(settings),
		voiceloop.WithCompletion(&fakeModel{}),
	)
	ctx := context.Background()

	info, err := hub.Create(ctx, "")
	require.NoError(t, err)
	require.NoError(t, hub.Start(ctx, info.ID))

	directives := drainUntil(t, hub, info.ID, 2)
	require.NotNil(t, directives[0].Settings)
	assert.Equal(t, "en-GB-RyanNeural", directives[0].Settings.Voice)
	assert.Equal(t, "Hello, what can I get you?", directives[1].Text)
}

func TestEngine_DefaultMenu(t *testing.T) {
	model := &fakeModel{reply: `{"intent":"ask-info","entities":null}`}
	hub := newHub(t, voiceloop.WithCompletion(model))
	ctx := context.Background()

	info, err := hub.Create(ctx, "")
	require.NoError(t, err)
	require.NoError(t, hub.Start(ctx, info.ID))
	drainUntil(t, hub, info.ID, 2)

	require.NoError(t, hub.Post(ctx, info.ID, domain.SpeakComplete()))
	require.NoError(t, hub.Post(ctx, info.ID, domain.Recognized("what do you have?")))

	directives := drainUntil(t, hub, info.ID, 2)
	assert.Equal(t, "The menu is: Wax burger, Wax fries, Wax coke, Wax milkshake.", directives[1].Text)
}

type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestConsoleRunner(t *testing.T) {
	model := &fakeModel{reply: `{"intent":"order","entities":{"food":"a burger","drink":"a coke"}}`}
	eng, err := voiceloop.New(voiceloop.WithCompletion(model))
	require.NoError(t, err)

	in, pw := io.Pipe()
	feed := func(line string) {
		_, err := io.WriteString(pw, line+"\n")
		require.NoError(t, err)
	}
	out := &syncBuffer{}
	r := &voiceloop.ConsoleRunner{
		Input:         in,
		Output:        out,
		SpeechOptions: []speech.ConsoleOption{speech.WithNoInputTimeout(0)},
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), eng) }()

	waitOutput := func(s string) {
		require.Eventually(t, func() bool { return strings.Contains(out.String(), s) }, time.Second, 5*time.Millisecond, "missing %q", s)
	}

	waitOutput("Press Enter to start.")
	feed("")
	waitOutput("What would you like to order?")
	waitOutput("> ")
	feed("a burger and a coke")
	waitOutput("You ordered a burger and a coke.")
	waitOutput("Is that correct?")

	require.NoError(t, pw.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop at end of input")
	}
}

func TestConsoleRunner_RequiresIO(t *testing.T) {
	eng, err := voiceloop.New(voiceloop.WithCompletion(&fakeModel{}))
	require.NoError(t, err)
	assert.Error(t, (&voiceloop.ConsoleRunner{}).Run(context.Background(), eng))
}
