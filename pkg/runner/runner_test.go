package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/voiceloop/internal/runtime"
	"github.com/aretw0/voiceloop/pkg/adapters/memory"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSpeech answers directives immediately: Prepare is ready at once, Speak
// completes at once and each Listen consumes the next scripted utterance
// ("" being a no-input). Listening past the script produces nothing.
type scriptedSpeech struct {
	mu         sync.Mutex
	events     chan domain.Event
	utterances []string
	spoken     []string
}

func newScriptedSpeech(utterances ...string) *scriptedSpeech {
	return &scriptedSpeech{events: make(chan domain.Event, 64), utterances: utterances}
}

func (s *scriptedSpeech) Prepare(context.Context, domain.SpeechSettings) error {
	s.events <- domain.Ready()
	return nil
}

func (s *scriptedSpeech) Listen(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.utterances) == 0 {
		return nil
	}
	next := s.utterances[0]
	s.utterances = s.utterances[1:]
	if next == "" {
		s.events <- domain.NoInput()
	} else {
		s.events <- domain.Recognized(next)
	}
	return nil
}

func (s *scriptedSpeech) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	s.events <- domain.SpeakComplete()
	return nil
}

func (s *scriptedSpeech) Events() <-chan domain.Event { return s.events }

func (s *scriptedSpeech) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type executorFunc func(ctx context.Context, sessionID string, req domain.TaskRequest) domain.Event

func (f executorFunc) Run(ctx context.Context, sessionID string, req domain.TaskRequest) domain.Event {
	return f(ctx, sessionID, req)
}

func scriptedExecutor(interpret, attitude string) executorFunc {
	return func(_ context.Context, _ string, req domain.TaskRequest) domain.Event {
		switch req.Kind {
		case domain.TaskFetchOptions:
			return domain.OptionsFetched(req.ID, []string{"llama3.1"})
		case domain.TaskAttitude:
			return domain.TaskDone(req.ID, attitude)
		default:
			return domain.TaskDone(req.ID, interpret)
		}
	}
}

func newEngine() *runtime.Engine {
	return runtime.NewEngine(runtime.WithCatalog([]domain.CatalogItem{
		{Key: "burger", Field: "food", Name: "Wax burger"},
	}))
}

func start(t *testing.T, r *runner.Runner) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := r.State()
		return s != nil && s.Location == domain.AtWaitToStart
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Trigger(ctx))
	return cancel, errc
}

func waitFor(t *testing.T, r *runner.Runner, loc domain.Location) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := r.State()
		return s != nil && s.Location == loc
	}, time.Second, 5*time.Millisecond, "never reached %s", loc)
}

func TestRunner_OrderToClosing(t *testing.T) {
	speech := newScriptedSpeech("a burger and a coke", "yes")
	store := memory.NewStore()
	var mu sync.Mutex
	var drops []*domain.DropEvent

	r := runner.New(newEngine(), speech,
		scriptedExecutor(`{"intent":"order","entities":{"food":"1 burger","drink":"1 coke"}}`, "positive"),
		runner.WithSessionID("kiosk"),
		runner.WithStore(store),
		runner.WithLifecycleHooks(domain.LifecycleHooks{
			OnEventDropped: func(_ context.Context, ev *domain.DropEvent) {
				mu.Lock()
				drops = append(drops, ev)
				mu.Unlock()
			},
		}),
	)
	cancel, errc := start(t, r)
	defer cancel()

	waitFor(t, r, domain.AtClosing)

	// The closing line completes in an idle state, which has no use for it.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(drops) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, domain.EventSpeakComplete, drops[0].Event)
	mu.Unlock()

	assert.Equal(t, []string{
		runtime.OrderingGreeting,
		"You ordered 1 burger and 1 coke.",
		"You ordered 1 burger, 1 coke. Is that correct?",
		runtime.ClosingLine,
	}, speech.Spoken())

	saved, err := store.Load(context.Background(), "kiosk")
	require.NoError(t, err)
	assert.Equal(t, domain.AtClosing, saved.Location)
	assert.Len(t, saved.Context.PendingItems, 2)

	cancel()
	assert.NoError(t, <-errc)
}

func TestRunner_SilenceTerminates(t *testing.T) {
	speech := newScriptedSpeech("", "")
	r := runner.New(newEngine(), speech, scriptedExecutor("", ""))
	cancel, errc := start(t, r)
	defer cancel()

	waitFor(t, r, domain.AtDone)
	spoken := speech.Spoken()
	require.Len(t, spoken, 3)
	assert.Equal(t, runtime.RetryPrompt, spoken[1])
	assert.Equal(t, runtime.Farewell(2), spoken[2])

	cancel()
	assert.NoError(t, <-errc)
}

func TestRunner_ObserversSeeDiffs(t *testing.T) {
	speech := newScriptedSpeech()
	commits := make(chan runner.Commit, 32)
	r := runner.New(newEngine(), speech, scriptedExecutor("", ""),
		runner.WithObserver(func(_ context.Context, c runner.Commit) { commits <- c }),
	)
	cancel, errc := start(t, r)
	defer cancel()
	waitFor(t, r, domain.AtListen)

	first := <-commits
	require.NotNil(t, first.Diff)
	require.NotNil(t, first.Diff.Location)
	assert.Equal(t, "Prepare", *first.Diff.Location)
	require.Len(t, first.Actions, 1)
	assert.Equal(t, domain.ActionPrepare, first.Actions[0].Type)

	timeout := time.After(time.Second)
	for listening := false; !listening; {
		select {
		case c := <-commits:
			listening = c.State.Location == domain.AtListen
		case <-timeout:
			t.Fatal("no commit for Listen")
		}
	}

	cancel()
	assert.NoError(t, <-errc)
}

func TestRunner_StaleTaskIsDeadLetter(t *testing.T) {
	speech := newScriptedSpeech("a burger")
	release := make(chan struct{})
	dropped := make(chan *domain.DropEvent, 8)

	exec := executorFunc(func(_ context.Context, _ string, req domain.TaskRequest) domain.Event {
		if req.Kind == domain.TaskFetchOptions {
			return domain.OptionsFetched(req.ID, nil)
		}
		<-release
		return domain.TaskDone(req.ID, `{"intent":"order","entities":{"food":"1 burger"}}`)
	})
	r := runner.New(newEngine(), speech, exec,
		runner.WithLifecycleHooks(domain.LifecycleHooks{
			OnEventDropped: func(_ context.Context, ev *domain.DropEvent) { dropped <- ev },
		}),
	)
	cancel, errc := start(t, r)
	defer cancel()

	waitFor(t, r, domain.AtInterpret)
	require.NoError(t, r.Trigger(context.Background()))
	waitFor(t, r, domain.AtListen)
	close(release)

	select {
	case ev := <-dropped:
		assert.Equal(t, domain.EventTaskDone, ev.Event)
		assert.Contains(t, ev.Reason, "dead letter")
	case <-time.After(time.Second):
		t.Fatal("stale outcome was not dropped")
	}
	assert.Empty(t, r.State().Context.PendingItems)

	cancel()
	assert.NoError(t, <-errc)
}

func TestRunner_RejectsOversizedUtterance(t *testing.T) {
	t.Setenv(runner.EnvMaxUtteranceSize, "8")
	speech := newScriptedSpeech("a very long utterance")
	dropped := make(chan *domain.DropEvent, 8)
	r := runner.New(newEngine(), speech, scriptedExecutor("", ""),
		runner.WithLifecycleHooks(domain.LifecycleHooks{
			OnEventDropped: func(_ context.Context, ev *domain.DropEvent) { dropped <- ev },
		}),
	)
	cancel, errc := start(t, r)
	defer cancel()

	select {
	case ev := <-dropped:
		assert.Equal(t, domain.EventRecognized, ev.Event)
	case <-time.After(time.Second):
		t.Fatal("oversized utterance was not dropped")
	}
	assert.Equal(t, domain.AtListen, r.State().Location)

	cancel()
	assert.NoError(t, <-errc)
}

func TestRunner_StopsWhenSpeechCloses(t *testing.T) {
	speech := newScriptedSpeech()
	r := runner.New(newEngine(), speech, scriptedExecutor("", ""))
	cancel, errc := start(t, r)
	defer cancel()

	waitFor(t, r, domain.AtListen)
	close(speech.events)
	assert.NoError(t, <-errc)

	err := r.Send(context.Background(), domain.Start())
	assert.ErrorIs(t, err, runner.ErrStopped)
	assert.ErrorIs(t, r.Run(context.Background()), runner.ErrAlreadyRunning)
}

type failingEngine struct{ *runtime.Engine }

func (failingEngine) Start(context.Context, string) (*domain.State, []domain.ActionRequest, error) {
	return nil, nil, errors.New("boom")
}

func TestRunner_StartFailure(t *testing.T) {
	r := runner.New(failingEngine{newEngine()}, newScriptedSpeech(), scriptedExecutor("", ""), runner.WithSessionID("x"))
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("session %s", "x"))
}

// quietSpeech never answers on its own; tests feed its event channel directly.
type quietSpeech struct{ events chan domain.Event }

func (quietSpeech) Prepare(context.Context, domain.SpeechSettings) error { return nil }
func (quietSpeech) Listen(context.Context) error { return nil }
func (quietSpeech) Speak(context.Context, string) error { return nil }
func (s quietSpeech) Events() <-chan domain.Event { return s.events }

func TestRunner_ReadyBeforeStartKeepsOrder(t *testing.T) {
	for i := 0; i < 50; i++ {
		speech := quietSpeech{events: make(chan domain.Event, 4)}
		r := runner.New(newEngine(), speech, scriptedExecutor("", ""))

		speech.events <- domain.Ready()
		require.NoError(t, r.Trigger(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() { errc <- r.Run(ctx) }()

		waitFor(t, r, domain.AtPrompt)
		cancel()
		require.NoError(t, <-errc)
	}
}
