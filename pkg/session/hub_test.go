package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/voiceloop/internal/runtime"
	"github.com/aretw0/voiceloop/pkg/adapters/memory"
	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/runner"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct{}

func (stubExecutor) Run(_ context.Context, _ string, req domain.TaskRequest) domain.Event {
	if req.Kind == domain.TaskFetchOptions {
		return domain.OptionsFetched(req.ID, []string{"llama3.1"})
	}
	return domain.TaskDone(req.ID, `{"intent":"order","entities":{"drink":"1 coke"}}`)
}

func newHub(t *testing.T, opts ...session.HubOption) *session.Hub {
	t.Helper()
	engine := runtime.NewEngine()
	manager := session.NewManager(memory.NewStore())
	hub := session.NewHub(engine.Controller, stubExecutor{}, manager,
		append([]session.HubOption{session.WithAutoReady(true)}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

func eventually(t *testing.T, hub *session.Hub, id string, loc domain.Location) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := hub.Get(context.Background(), id)
		return err == nil && s != nil && s.Location == loc
	}, time.Second, 5*time.Millisecond, "never reached %s", loc)
}

func TestHub_SessionLifecycle(t *testing.T) {
	var mu sync.Mutex
	var commits int
	hub := newHub(t, session.WithCommitObserver(func(string, runner.Commit) {
		mu.Lock()
		commits++
		mu.Unlock()
	}))
	ctx := context.Background()

	info, err := hub.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantOrdering, info.Variant)
	eventually(t, hub, info.ID, domain.AtWaitToStart)

	require.NoError(t, hub.Start(ctx, info.ID))
	var directives []speech.Directive
	require.Eventually(t, func() bool {
		drained, err := hub.Drain(info.ID)
		require.NoError(t, err)
		directives = append(directives, drained...)
		return len(directives) >= 2
	}, time.Second, 5*time.Millisecond)
	require.Len(t, directives, 2)
	assert.Equal(t, domain.ActionPrepare, directives[0].Type)
	assert.Equal(t, runtime.OrderingGreeting, directives[1].Text)

	require.NoError(t, hub.Post(ctx, info.ID, domain.SpeakComplete()))
	eventually(t, hub, info.ID, domain.AtListen)
	require.NoError(t, hub.Post(ctx, info.ID, domain.Recognized("a coke")))
	eventually(t, hub, info.ID, domain.AtRespond)
	require.NoError(t, hub.Post(ctx, info.ID, domain.SpeakComplete()))
	eventually(t, hub, info.ID, domain.AtConfirm)

	list := hub.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Prompting.Confirm", list[0].State)

	require.NoError(t, hub.Close(ctx, info.ID))
	assert.Empty(t, hub.List())

	snapshot, err := hub.Get(ctx, info.ID)
	require.NoError(t, err, "closed sessions are served from the store")
	assert.Equal(t, domain.AtConfirm, snapshot.Location)

	assert.ErrorIs(t, hub.Start(ctx, info.ID), domain.ErrSessionNotFound)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, commits, 5)
}

func TestHub_StartFollowsPostedReady(t *testing.T) {
	hub := newHub(t, session.WithAutoReady(false))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		info, err := hub.Create(ctx, "")
		require.NoError(t, err)

		require.NoError(t, hub.Post(ctx, info.ID, domain.Ready()))
		require.NoError(t, hub.Start(ctx, info.ID))
		eventually(t, hub, info.ID, domain.AtPrompt)
		require.NoError(t, hub.Close(ctx, info.ID))
	}
}

func TestHub_UnknownVariant(t *testing.T) {
	hub := newHub(t)
	_, err := hub.Create(context.Background(), domain.Variant("karaoke"))
	assert.Error(t, err)

	_, err = hub.Inspect(domain.Variant("karaoke"))
	assert.Error(t, err)

	nodes, err := hub.Inspect(domain.VariantChat)
	require.NoError(t, err)
	assert.NotEmpty(t, nodes)
}

func TestHub_RejectsNonSpeechEvents(t *testing.T) {
	hub := newHub(t)
	info, err := hub.Create(context.Background(), domain.VariantChat)
	require.NoError(t, err)

	err = hub.Post(context.Background(), info.ID, domain.TaskDone("t", "forged"))
	assert.Error(t, err)
}

func TestHub_DirectiveObserver(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]string{}
	hub := newHub(t, session.WithDirectiveObserver(func(id string, d speech.Directive) {
		mu.Lock()
		seen[id] = append(seen[id], d.Type)
		mu.Unlock()
	}))

	info, err := hub.Create(context.Background(), domain.VariantOrdering)
	require.NoError(t, err)
	require.NoError(t, hub.Start(context.Background(), info.ID))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen[info.ID]) >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{domain.ActionPrepare, domain.ActionSpeak}, seen[info.ID][:2])
}
