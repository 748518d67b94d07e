package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/voiceloop/internal/runtime"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeByID(nodes []domain.StateNode) map[string]domain.StateNode {
	out := make(map[string]domain.StateNode, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out
}

func TestInspect_Ordering(t *testing.T) {
	nodes := nodeByID(newEngine().Inspect())

	assert.Equal(t, domain.StateKindComposite, nodes["Prompting"].Kind)
	assert.Equal(t, "Prompting.FetchOptions", nodes["Prompting"].Initial)
	assert.Equal(t, "Prompting.NoInput.Choice", nodes["Prompting.NoInput"].Initial)
	assert.Equal(t, domain.StateKindTransient, nodes["Prompting.CheckState"].Kind)
	assert.Equal(t, domain.StateKindTransient, nodes["Prompting.NoInput.Choice"].Kind)
	assert.Equal(t, domain.StateKindTask, nodes["Prompting.Interpret"].Kind)
	assert.Equal(t, domain.StateKindIdle, nodes["WaitToStart"].Kind)
	assert.Contains(t, nodes, "Prompting.Confirm")

	choice := nodes["Prompting.NoInput.Choice"].Transitions
	require.Len(t, choice, 2)
	assert.Equal(t, "silence > 1", choice[0].Guard)
	assert.Equal(t, "Prompting.NoInput.Terminate", choice[0].To)
	assert.Empty(t, choice[1].Guard)
}

func TestInspect_Chat(t *testing.T) {
	e := newEngine(runtime.WithVariant(domain.VariantChat))
	nodes := nodeByID(e.Inspect())

	assert.NotContains(t, nodes, "Prompting.CheckState")
	assert.NotContains(t, nodes, "Prompting.Confirm")

	var toDone bool
	for _, tr := range nodes["Prompting.Listen"].Transitions {
		if tr.Event == domain.EventSpeakComplete && tr.To == "Done" {
			toDone = true
		}
	}
	assert.True(t, toDone, "chat Listen ends on speak-complete")
	assert.Nil(t, e.InspectVariant(domain.Variant("unknown")))
}

func TestEngine_StateHooks(t *testing.T) {
	var entered, left []string
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := newEngine(
		runtime.WithClock(func() time.Time { return at }),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnStateEnter: func(_ context.Context, ev *domain.StateEvent) {
				assert.Equal(t, at, ev.Timestamp)
				assert.Equal(t, "s1", ev.SessionID)
				entered = append(entered, ev.State)
			},
			OnStateLeave: func(_ context.Context, ev *domain.StateEvent) {
				left = append(left, ev.State)
			},
		}),
	)
	s := listening(t, e)
	entered, left = nil, nil

	s, _ = step(t, e, s, domain.Recognized("a burger"))
	assert.Equal(t, []string{"Prompting.Listen"}, left)
	assert.Equal(t, []string{"Prompting.Interpret"}, entered)

	entered, left = nil, nil
	_, _ = step(t, e, s, domain.Start())
	assert.Equal(t, []string{"Prompting.Interpret", "Prompting"}, left, "restart leaves the whole phase")
	assert.Equal(t, []string{"Prompting", "Prompting.FetchOptions"}, entered)
}

func TestEngine_ChoiceHooks(t *testing.T) {
	var entered []string
	e := newEngine(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, ev *domain.StateEvent) {
			entered = append(entered, ev.State)
		},
	}))
	s := listening(t, e)
	entered = nil

	_, _ = step(t, e, s, domain.NoInput())
	assert.Equal(t, []string{"Prompting.NoInput", "Prompting.NoInput.Choice", "Prompting.NoInput.Retry"}, entered)
}

func TestEngine_CustomSilencePolicy(t *testing.T) {
	e := newEngine(runtime.WithSilencePolicy(runtime.SilencePolicy{MaxSilences: 0}))
	s := listening(t, e)

	s, actions := step(t, e, s, domain.NoInput())
	assert.Equal(t, domain.AtNoInputTerminate, s.Location)
	assert.Equal(t, runtime.Farewell(1), spoken(t, actions))
}

func TestEngine_PrepareCarriesSettings(t *testing.T) {
	settings := domain.DefaultSpeechSettings()
	settings.Voice = "en-GB-RyanNeural"
	e := newEngine(runtime.WithSpeechSettings(settings), runtime.WithGreeting("Hi there"))

	_, actions, err := e.Start(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, settings, actions[0].Payload)

	s := listening(t, e)
	s, _ = step(t, e, s, domain.NoInput())
	s, _ = step(t, e, s, domain.SpeakComplete())
	assert.Equal(t, domain.AtListen, s.Location)
}

func TestEngine_Controller(t *testing.T) {
	e := newEngine()
	chat, err := e.Controller(domain.VariantChat)
	require.NoError(t, err)

	s, _, err := chat.Start(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantChat, s.Variant)
	assert.NotContains(t, nodeByID(chat.Inspect()), "Prompting.Confirm")

	_, err = e.Controller(domain.Variant("karaoke"))
	assert.Error(t, err)
}
