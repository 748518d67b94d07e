package speech_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, ch <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return domain.Event{}
	}
}

func TestConsole_Dialogue(t *testing.T) {
	inR, inW := io.Pipe()
	var out bytes.Buffer
	c := speech.NewConsole(inR, &out, speech.WithNoInputTimeout(time.Hour))
	ctx := context.Background()

	require.NoError(t, c.Prepare(ctx, domain.DefaultSpeechSettings()))
	assert.Equal(t, domain.EventReady, next(t, c.Events()).Type)

	_, _ = io.WriteString(inW, "\n")
	assert.Equal(t, domain.EventStart, next(t, c.Events()).Type, "empty line while idle starts")

	require.NoError(t, c.Speak(ctx, "Welcome to Wax Burger!"))
	assert.Equal(t, domain.EventSpeakComplete, next(t, c.Events()).Type)

	require.NoError(t, c.Listen(ctx))
	_, _ = io.WriteString(inW, "  a burger \n")
	assert.Equal(t, domain.Recognized("a burger"), next(t, c.Events()))

	require.NoError(t, c.Listen(ctx))
	_, _ = io.WriteString(inW, "\n")
	assert.Equal(t, domain.EventNoInput, next(t, c.Events()).Type)

	require.NoError(t, inW.Close())
	_, open := <-c.Events()
	assert.False(t, open, "EOF closes the stream")
	assert.True(t, strings.Contains(out.String(), "Welcome to Wax Burger!"))
}

func TestConsole_NoInputTimeout(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()
	c := speech.NewConsole(inR, io.Discard, speech.WithNoInputTimeout(20*time.Millisecond))

	require.NoError(t, c.Listen(context.Background()))
	assert.Equal(t, domain.EventNoInput, next(t, c.Events()).Type)

	_, _ = io.WriteString(inW, "too late\n")
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %s after timeout", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
