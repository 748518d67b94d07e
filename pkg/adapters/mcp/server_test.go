package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/voiceloop/internal/runtime"
	"github.com/aretw0/voiceloop/pkg/adapters/memory"
	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct{}

func (stubExecutor) Run(_ context.Context, _ string, req domain.TaskRequest) domain.Event {
	if req.Kind == domain.TaskFetchOptions {
		return domain.OptionsFetched(req.ID, nil)
	}
	return domain.TaskDone(req.ID, `{"intent":"order","entities":{"food":"a burger"}}`)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	hub := session.NewHub(runtime.NewEngine().Controller, stubExecutor{},
		session.NewManager(memory.NewStore()), session.WithAutoReady(true))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return NewServer(hub)
}

func waitFor(t *testing.T, s *Server, id string, loc domain.Location) {
	t.Helper()
	require.Eventually(t, func() bool {
		out, err := s.handleInspect(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{"session_id": id})
		return err == nil && out.State.Location == loc
	}, time.Second, 5*time.Millisecond, "never reached %s", loc)
}

func TestServer_Conversation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	info, err := s.handleCreate(ctx, req, map[string]interface{}{"variant": "ordering"})
	require.NoError(t, err)
	require.NotEmpty(t, info.ID)
	waitFor(t, s, info.ID, domain.AtWaitToStart)

	ack, err := s.handleStart(ctx, req, map[string]interface{}{"session_id": info.ID})
	require.NoError(t, err)
	assert.Equal(t, "started", ack.Status)

	var directives []speech.Directive
	require.Eventually(t, func() bool {
		out, err := s.handleDrain(ctx, req, map[string]interface{}{"session_id": info.ID})
		require.NoError(t, err)
		directives = append(directives, out.Directives...)
		return len(directives) >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, runtime.OrderingGreeting, directives[len(directives)-1].Text)

	_, err = s.handleSendEvent(ctx, req, map[string]interface{}{"session_id": info.ID, "type": "speak-complete"})
	require.NoError(t, err)
	waitFor(t, s, info.ID, domain.AtListen)

	_, err = s.handleSendEvent(ctx, req, map[string]interface{}{
		"session_id": info.ID, "type": "recognized", "utterance": "a burger please",
	})
	require.NoError(t, err)
	waitFor(t, s, info.ID, domain.AtRespond)

	out, err := s.handleInspect(ctx, req, map[string]interface{}{"session_id": info.ID})
	require.NoError(t, err)
	assert.Equal(t, "You ordered a burger and undefined.", out.State.Context.LastResultText())
	assert.Contains(t, out.Mermaid, "class Prompting_Respond current;")

	list, err := s.handleList(ctx, req, nil)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)

	ack, err = s.handleClose(ctx, req, map[string]interface{}{"session_id": info.ID})
	require.NoError(t, err)
	assert.Equal(t, "closed", ack.Status)
}

func TestServer_RejectsBadArguments(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleCreate(ctx, req, map[string]interface{}{"variant": "karaoke"})
	assert.ErrorContains(t, err, "unknown variant")

	_, err = s.handleStart(ctx, req, map[string]interface{}{})
	assert.ErrorContains(t, err, "session_id is required")

	_, err = s.handleStart(ctx, req, map[string]interface{}{"session_id": 42})
	assert.ErrorContains(t, err, "invalid arguments")

	_, err = s.handleSendEvent(ctx, req, map[string]interface{}{"session_id": "x", "type": "start"})
	assert.ErrorContains(t, err, "event rejected")

	_, err = s.handleDrain(ctx, req, map[string]interface{}{"session_id": "missing"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestServer_StatechartResource(t *testing.T) {
	s := newTestServer(t)

	contents, err := s.readStatechart(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, StatechartURI, text.URI)
	assert.True(t, strings.HasPrefix(text.Text, "graph TD"))
	assert.Contains(t, text.Text, "ListenForAttitude")
}
