package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/voiceloop"
	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/internal/presentation/graph"
	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"
)

// StatechartURI is the resource serving the Mermaid chart of the default variant.
const StatechartURI = "voiceloop://statechart"

// Sessions is the part of session.Hub the MCP tools drive.
type Sessions interface {
	Create(ctx context.Context, variant domain.Variant) (session.Info, error)
	List() []session.Info
	Get(ctx context.Context, id string) (*domain.State, error)
	Start(ctx context.Context, id string) error
	Post(ctx context.Context, id string, ev domain.Event) error
	Drain(id string) ([]speech.Directive, error)
	Close(ctx context.Context, id string) error
	Inspect(variant domain.Variant) ([]domain.StateNode, error)
}

// Ack confirms a command that returns no data.
type Ack struct {
	SessionID string `json:"session_id" jsonschema_description:"The session the command was applied to"`
	Status    string `json:"status" jsonschema_description:"What happened"`
}

// SessionList is the result of list_sessions.
type SessionList struct {
	Sessions []session.Info `json:"sessions" jsonschema_description:"Live sessions, oldest first"`
}

// DirectiveList is the result of drain_directives.
type DirectiveList struct {
	Directives []speech.Directive `json:"directives" jsonschema_description:"Speech directives issued since the previous drain"`
}

// Inspection is the result of inspect_session.
type Inspection struct {
	State   *domain.State `json:"state" jsonschema_description:"The current or last known state"`
	Mermaid string        `json:"mermaid" jsonschema_description:"The state chart with the current state highlighted"`
}

type createArgs struct {
	Variant string `mapstructure:"variant"`
}

type sessionArgs struct {
	SessionID string `mapstructure:"session_id"`
}

type eventArgs struct {
	SessionID string `mapstructure:"session_id"`
	Type      string `mapstructure:"type"`
	Utterance string `mapstructure:"utterance"`
}

// Server exposes hosted sessions as MCP tools.
type Server struct {
	sessions  Sessions
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		mcpServer: server.NewMCPServer("voiceloop-mcp", strings.TrimSpace(voiceloop.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a dialogue session. It waits for start_session."),
		mcp.WithString("variant", mcp.Description("Dialogue variant: ordering (default) or chat"), mcp.Enum("ordering", "chat")),
		mcp.WithOutputSchema[session.Info](),
	), mcp.NewStructuredToolHandler(s.handleCreate))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Send the start signal. Restarts the interaction if one is running."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("send_event",
		mcp.WithDescription("Report a speech event: ready, recognized, no-input or speak-complete."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Event type"),
			mcp.Enum(string(domain.EventReady), string(domain.EventRecognized), string(domain.EventNoInput), string(domain.EventSpeakComplete))),
		mcp.WithString("utterance", mcp.Description("Recognized text, for recognized events")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handleSendEvent))

	s.mcpServer.AddTool(mcp.NewTool("inspect_session",
		mcp.WithDescription("Return the state of a session and its chart with the current state highlighted."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[Inspection](),
	), mcp.NewStructuredToolHandler(s.handleInspect))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List live sessions."),
		mcp.WithOutputSchema[SessionList](),
	), mcp.NewStructuredToolHandler(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("drain_directives",
		mcp.WithDescription("Return the speech directives (PREPARE, LISTEN, SPEAK) issued since the last call."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[DirectiveList](),
	), mcp.NewStructuredToolHandler(s.handleDrain))

	s.mcpServer.AddTool(mcp.NewTool("close_session",
		mcp.WithDescription("Stop a session. Its last snapshot stays inspectable."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handleClose))
}

func decodeArgs[T any](args map[string]interface{}) (T, error) {
	var out T
	if err := mapstructure.Decode(args, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}

func sessionID(args map[string]interface{}) (string, error) {
	a, err := decodeArgs[sessionArgs](args)
	if err != nil {
		return "", err
	}
	if a.SessionID == "" {
		return "", errors.New("session_id is required")
	}
	return a.SessionID, nil
}

func (s *Server) handleCreate(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (session.Info, error) {
	a, err := decodeArgs[createArgs](args)
	if err != nil {
		return session.Info{}, err
	}
	v := domain.Variant(a.Variant)
	if v != "" && !v.Valid() {
		return session.Info{}, fmt.Errorf("unknown variant %q", a.Variant)
	}
	return s.sessions.Create(ctx, v)
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (Ack, error) {
	id, err := sessionID(args)
	if err != nil {
		return Ack{}, err
	}
	if err := s.sessions.Start(ctx, id); err != nil {
		return Ack{}, err
	}
	return Ack{SessionID: id, Status: "started"}, nil
}

func (s *Server) handleSendEvent(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (Ack, error) {
	a, err := decodeArgs[eventArgs](args)
	if err != nil {
		return Ack{}, err
	}
	if a.SessionID == "" {
		return Ack{}, errors.New("session_id is required")
	}
	ev, err := speech.ParseEvent(domain.EventType(a.Type), a.Utterance)
	if err != nil {
		s.logger.Warn("MCP send_event: event rejected", "session_id", a.SessionID, "err", err, "size", len(a.Utterance))
		return Ack{}, fmt.Errorf("event rejected: %w", err)
	}
	if err := s.sessions.Post(ctx, a.SessionID, ev); err != nil {
		return Ack{}, err
	}
	return Ack{SessionID: a.SessionID, Status: "accepted"}, nil
}

func (s *Server) handleInspect(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (Inspection, error) {
	id, err := sessionID(args)
	if err != nil {
		return Inspection{}, err
	}
	state, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Inspection{}, err
	}
	nodes, err := s.sessions.Inspect(state.Variant)
	if err != nil {
		return Inspection{}, err
	}
	return Inspection{
		State:   state,
		Mermaid: graph.GenerateMermaid(nodes, &graph.GraphOverlay{CurrentState: state.Path()}),
	}, nil
}

func (s *Server) handleList(_ context.Context, _ mcp.CallToolRequest, _ map[string]interface{}) (SessionList, error) {
	return SessionList{Sessions: s.sessions.List()}, nil
}

func (s *Server) handleDrain(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (DirectiveList, error) {
	id, err := sessionID(args)
	if err != nil {
		return DirectiveList{}, err
	}
	directives, err := s.sessions.Drain(id)
	if err != nil {
		return DirectiveList{}, err
	}
	if directives == nil {
		directives = []speech.Directive{}
	}
	return DirectiveList{Directives: directives}, nil
}

func (s *Server) handleClose(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (Ack, error) {
	id, err := sessionID(args)
	if err != nil {
		return Ack{}, err
	}
	if err := s.sessions.Close(ctx, id); err != nil {
		return Ack{}, err
	}
	return Ack{SessionID: id, Status: "closed"}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StatechartURI, "Dialogue State Chart",
		mcp.WithResourceDescription("Mermaid flowchart of the default dialogue variant"),
		mcp.WithMIMEType("text/vnd.mermaid"),
	), s.readStatechart)
}

func (s *Server) readStatechart(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	nodes, err := s.sessions.Inspect("")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect chart: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      StatechartURI,
			MIMEType: "text/vnd.mermaid",
			Text:     graph.GenerateMermaid(nodes, nil),
		},
	}, nil
}
