package speech_test

import (
	"context"
	"testing"

	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_DirectivesAndEvents(t *testing.T) {
	ctx := context.Background()
	b := speech.NewBridge()

	require.NoError(t, b.Prepare(ctx, domain.DefaultSpeechSettings()))
	require.NoError(t, b.Speak(ctx, "Welcome"))
	require.NoError(t, b.Listen(ctx))

	drained := b.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, domain.ActionPrepare, drained[0].Type)
	assert.Equal(t, "en-US", drained[0].Settings.Locale)
	assert.Equal(t, "Welcome", drained[1].Text)
	assert.Equal(t, 3, drained[2].Seq)
	assert.Empty(t, b.Drain())

	require.NoError(t, b.Post(ctx, domain.Recognized("a coke")))
	assert.Equal(t, domain.Recognized("a coke"), <-b.Events())

	assert.Error(t, b.Post(ctx, domain.TaskDone("t1", "x")), "task outcomes are not speech events")
}

func TestBridge_TriggerSharesEventQueue(t *testing.T) {
	ctx := context.Background()
	b := speech.NewBridge()

	require.NoError(t, b.Post(ctx, domain.Ready()))
	require.NoError(t, b.Trigger(ctx))
	assert.Equal(t, domain.EventReady, (<-b.Events()).Type)
	assert.Equal(t, domain.EventStart, (<-b.Events()).Type)

	b.Close()
	assert.ErrorIs(t, b.Trigger(ctx), speech.ErrClosed)
}

func TestBridge_AutoReady(t *testing.T) {
	b := speech.NewBridge(speech.WithAutoReady(true))
	require.NoError(t, b.Prepare(context.Background(), domain.DefaultSpeechSettings()))
	assert.Equal(t, domain.EventReady, (<-b.Events()).Type)
}

func TestBridge_Close(t *testing.T) {
	b := speech.NewBridge()
	b.Close()
	b.Close()

	_, open := <-b.Events()
	assert.False(t, open)
	assert.ErrorIs(t, b.Post(context.Background(), domain.NoInput()), speech.ErrClosed)
}

func TestBridge_DirectiveHook(t *testing.T) {
	var issued []speech.Directive
	b := speech.NewBridge(speech.WithDirectiveHook(func(d speech.Directive) {
		issued = append(issued, d)
	}))

	require.NoError(t, b.Speak(context.Background(), "Hi"))
	require.NoError(t, b.Listen(context.Background()))

	require.Len(t, issued, 2)
	assert.Equal(t, "Hi", issued[0].Text)
	assert.Equal(t, 2, issued[1].Seq)
	assert.Len(t, b.Drain(), 2, "hooked directives are still queued")
}

func TestParseEvent(t *testing.T) {
	ev, err := speech.ParseEvent(domain.EventRecognized, "  a coke  ")
	require.NoError(t, err)
	assert.Equal(t, domain.EventRecognized, ev.Type)

	ev, err = speech.ParseEvent(domain.EventNoInput, "ignored")
	require.NoError(t, err)
	assert.Equal(t, domain.NoInput(), ev)

	_, err = speech.ParseEvent(domain.EventStart, "")
	assert.Error(t, err, "start is a host signal, not a speech event")

	_, err = speech.ParseEvent(domain.EventRecognized, "bad \xff utf8")
	assert.Error(t, err)
}
